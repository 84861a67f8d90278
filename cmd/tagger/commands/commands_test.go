package commands

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testStore = `{
  "%[1]s/a.jpg": {"analysis": {"design": {"fit": "boxy"}}, "timestamp": "2024-03-01T09:00:00Z", "filename": "a.jpg"}
}`

// writeConfig lays out an images dir with two photos, one already analyzed.
func writeConfig(t *testing.T) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	images := filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(images, 0o755))
	for _, name := range []string{"a.jpg", "b.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(images, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "store.json"), []byte(fmt.Sprintf(testStore, images)), 0o644))

	cfgPath = filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`
tagger:
  imagesDir: %[1]s/images
  storePath: %[1]s/store.json
log:
  level: error
  file: %[1]s/tagger.log
`, dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := execute(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Candidate images")
	require.Contains(t, out, "2024-03-01T09:00:00Z")
	require.Regexp(t, `Pending\s+│\s+1`, out)
}

func TestExportCommandCSV(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	target := filepath.Join(dir, "out.csv")
	_, err := execute(t, "--config", cfgPath, "export", "--format", "csv", "--out", target)
	require.NoError(t, err)

	f, err := os.Open(target)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"key", "filename", "timestamp", "design.fit"}, rows[0])
	require.Equal(t, "boxy", rows[1][3])
}

func TestAnalyzeNeedsAPIKey(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	t.Setenv("OPENAI_API_KEY", "")
	_, err := execute(t, "--config", cfgPath, "analyze")
	require.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := execute(t, "--config", cfgPath, "export", "--format", "pdf")
	require.Error(t, err)
}
