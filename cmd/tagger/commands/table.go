package commands

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func printSummary(out io.Writer, sum domain.Summary) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Run", "Total", "Analyzed", "Skipped", "Failed", "Stopped"})
	stopped := sum.Stopped
	if stopped == "" {
		stopped = "-"
	}
	t.AppendRow(table.Row{sum.RunID, sum.Total, sum.Analyzed, sum.Skipped, sum.Failed, stopped})
	t.Render()
}
