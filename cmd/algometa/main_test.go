package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"algometa/internal/manual"
)

const clockManual = "## Clock\n" +
	"File format guid: 'clck'\n" +
	"\n" +
	"Description\n" +
	"\n" +
	"Generates clocks.\n" +
	"\n" +
	"Routing parameters\n" +
	"```\n" +
	"Output 1 28 15 The bus to use as output.\n" +
	"Aux Output 1 8 1 The aux output.\n" +
	"```\n"

type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual.md"), []byte(clockManual), 0644))
	yaml := fmt.Sprintf(`manuals:
  - %[1]s/manual.md
store:
  backend: dir
  dir: %[1]s/algorithms
  database_path: %[1]s/algometa.db
audit:
  output: %[1]s/reports/audit.md
logging:
  level: error
`, dir)
	path := filepath.Join(dir, "algometa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return workspace{dir: dir, config: path}
}

// execute runs the root command with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	verbose, dryRun = false, false
	auditPretty, auditOutput = false, ""
	showRecord = false
	copyTo, copyPath = "", ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSyncCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "sync", "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "created=1")

	data, err := os.ReadFile(filepath.Join(ws.dir, "algorithms", "clck.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"busIdRef": "Output"`)

	out, err = execute(t, "sync", "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged=1")
}

func TestDryRunWritesNothing(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "stubs", "--dry-run", "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "dry run: ")
	assert.Contains(t, out, "created=1")

	_, err = os.Stat(filepath.Join(ws.dir, "algorithms", "clck.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestAuditCommand(t *testing.T) {
	ws := newWorkspace(t)
	_, err := execute(t, "stubs", "--config", ws.config)
	require.NoError(t, err)

	out, err := execute(t, "audit", "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "ok=0 warn=1 err=1")

	report, err := os.ReadFile(filepath.Join(ws.dir, "reports", "audit.md"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "### clck – Clock")
	assert.Contains(t, string(report), "- [ERROR] Missing routing parameter 'Output'")
	assert.NotContains(t, string(report), "'Aux Output'")
}

func TestShowCommand(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "show", "CLCK", "--record", "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "clck – Clock")
	assert.Contains(t, out, "Aux Output")
	assert.Contains(t, out, "Generates clocks.")
	assert.Contains(t, out, "No stored record for clck")
	assert.NotContains(t, out, "Stored record:")

	_, err = execute(t, "show", "nope", "--config", ws.config)
	assert.True(t, errors.Is(err, manual.ErrIdentifierNotFound))
}

func TestImportAndCopy(t *testing.T) {
	ws := newWorkspace(t)
	filled := filepath.Join(ws.dir, "filled.json")
	require.NoError(t, os.WriteFile(filled, []byte(`{"guid":"mixr","name":"Mixer","categories":["Utility"]}`), 0644))

	out, err := execute(t, "import", filled, "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "created=1")

	db := filepath.Join(ws.dir, "copy.db")
	out, err = execute(t, "copy", "--to", "sqlite", "--path", db, "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "copied=1 malformed=0")
	assert.FileExists(t, db)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "algometa.yaml")

	_, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.Error(t, err)
}

func TestMissingManualsFail(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.Remove(filepath.Join(ws.dir, "manual.md")))

	_, err := execute(t, "sync", "--config", ws.config)
	assert.Error(t, err)
}
