package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleScript = `import pandas as pd

df = pd.read_csv("sales.csv")
df = df.rename(columns={"amt": "amount"})
df = df.fillna(0)
df.to_csv("out.csv")
`

func writeScript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestConvert_JSONToStdout(t *testing.T) {
	script := writeScript(t, "sales.py", sampleScript)

	stdout, _, err := runCLI(t, "convert", script)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &m))
	assert.Equal(t, "sales", m["flow_name"])
	assert.Contains(t, stdout, "ColumnRenamer")
	assert.Contains(t, stdout, "FillEmptyWithValue")
}

func TestConvert_OutputDir(t *testing.T) {
	script := writeScript(t, "sales.py", sampleScript)
	outDir := t.TempDir()

	_, _, err := runCLI(t, "convert", script, "--output-dir", outDir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outDir, "sales.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"flow_name": "sales"`)
}

func TestConvert_TextFormat(t *testing.T) {
	script := writeScript(t, "sales.py", sampleScript)

	stdout, _, err := runCLI(t, "convert", script, "-o", "text")
	require.NoError(t, err)

	assert.Contains(t, stdout, "flow: sales")
	assert.Contains(t, stdout, "step: ColumnRenamer")
}

func TestConvert_NamedFlow(t *testing.T) {
	script := writeScript(t, "sales.py", sampleScript)

	stdout, _, err := runCLI(t, "convert", script, "--name", "nightly_sales")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"flow_name": "nightly_sales"`)
}

func TestConvert_MissingScriptFails(t *testing.T) {
	_, stderr, err := runCLI(t, "convert", "does-not-exist.py")
	require.Error(t, err)
	assert.Contains(t, stderr, "does-not-exist.py")
}

func TestValidate_WellFormedScript(t *testing.T) {
	script := writeScript(t, "sales.py", sampleScript)

	stdout, _, err := runCLI(t, "validate", script, "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok")
}

func TestValidate_ParseErrorFails(t *testing.T) {
	script := writeScript(t, "broken.py", "df = (\n")

	_, _, err := runCLI(t, "validate", script)
	assert.Error(t, err)
}

func TestLineage_TracesRenamedColumn(t *testing.T) {
	script := writeScript(t, "sales.py", sampleScript)

	stdout, _, err := runCLI(t, "lineage", script, "amount", "-o", "text")
	require.NoError(t, err)

	assert.Contains(t, stdout, "originates from")
	assert.Contains(t, stdout, "amt")
}

func TestGraph_ShowsTopologicalOrder(t *testing.T) {
	script := writeScript(t, "sales.py", sampleScript)

	stdout, _, err := runCLI(t, "graph", script, "-o", "text")
	require.NoError(t, err)

	assert.Contains(t, stdout, "flow sales")
	assert.Contains(t, stdout, "df")
}

func TestProcessors_ListsCatalog(t *testing.T) {
	stdout, _, err := runCLI(t, "processors", "-o", "text")
	require.NoError(t, err)

	assert.Contains(t, stdout, "ColumnRenamer")
	assert.Contains(t, stdout, "prepare")
}

func TestHistory_RecordsConversions(t *testing.T) {
	script := writeScript(t, "sales.py", sampleScript)
	historyPath := filepath.Join(t.TempDir(), "history.db")

	_, _, err := runCLI(t, "--history", historyPath, "convert", script)
	require.NoError(t, err)

	stdout, _, err := runCLI(t, "--history", historyPath, "history", "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sales")
	assert.Contains(t, stdout, "completed")
}

func TestHistory_WithoutPathFails(t *testing.T) {
	_, _, err := runCLI(t, "history")
	assert.Error(t, err)
}
