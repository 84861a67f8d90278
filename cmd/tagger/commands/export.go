package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/knit-tagger/internal/config"
	domain "github.com/bryanwahyu/knit-tagger/internal/domain/tagging"
	"github.com/bryanwahyu/knit-tagger/internal/infra/export"
	"github.com/bryanwahyu/knit-tagger/internal/infra/store/jsonfile"
)

var (
	exportFormat string
	exportOut    string
	exportUpload bool
	exportFromDB bool
)

const exportPageSize = 500

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "Output format: xlsx or csv.")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default <store name>.<format>).")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "Also upload the file to MinIO.")
	exportCmd.Flags().BoolVar(&exportFromDB, "from-db", false, "Read records from the database replica instead of the result store.")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [--format xlsx|csv] [--out <file>] [--upload]",
	Short: "Flattens the result store into a spreadsheet.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd.Context())
		cfg := a.Config

		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		out := exportOut
		if out == "" {
			out = strings.TrimSuffix(cfg.Tagger.StorePath, filepath.Ext(cfg.Tagger.StorePath)) + "." + string(format)
		}

		records, err := loadRecords(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		sheet, err := export.Flatten(records)
		if err != nil {
			return err
		}

		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := export.Write(f, format, sheet); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		a.Logger.Info("export written", "file", out, "rows", len(sheet.Rows), "columns", len(sheet.Columns))
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(sheet.Rows), out)

		if !exportUpload {
			return nil
		}
		if !cfg.Minio.Enabled {
			return fmt.Errorf("--upload needs minio.enabled in config")
		}
		remote, err := openMinio(cmd.Context(), cfg.Minio)
		if err != nil {
			return err
		}
		url, err := remote.Upload(cmd.Context(), out)
		if err != nil {
			return fmt.Errorf("upload %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded to %s\n", url)
		return nil
	},
}

func loadRecords(ctx context.Context, cfg *config.Config) ([]domain.KeyedRecord, error) {
	if !exportFromDB {
		store, err := jsonfile.Load(cfg.Tagger.StorePath)
		if err != nil {
			return nil, fmt.Errorf("load result store: %w", err)
		}
		return store.Records(), nil
	}

	db, repo, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("--from-db needs database.driver in config")
	}
	defer db.Close()

	var all []domain.KeyedRecord
	for offset := 0; ; offset += exportPageSize {
		page, err := repo.List(ctx, exportPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list %s records: %w", repo.Name(), err)
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
	}
}
