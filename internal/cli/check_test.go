package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const letScenario = `name: let_var
description: "let x = 50i32 in x"
analyses: [typeinfer, linearity]
run_id: cli-let
tree:
  names: [x]
  nodes:
    - {label: lit, i32: 50}
    - {label: body, var: x}
    - {label: let, let: {name: x, value: lit, body: body}}
  root: let
assertions:
  - {type: type_of, expr: let, type_name: i32}
  - {type: ok, analysis: linearity}
`

// scenarioDir writes the given files into a fresh directory.
func scenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestCheckCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestCheckCommand_NonExistentPath(t *testing.T) {
	_, err := execute(t, "check", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "collect scenarios")
}

func TestCheckCommand_Pass(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"let_var.yaml": letScenario})

	out, err := execute(t, "check", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "type inference  run=cli-let")
	assert.Contains(t, out, "linearity  run=cli-let")
	assert.Contains(t, out, "✓ let_var")
	assert.Contains(t, out, "Check Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestCheckCommand_FailedAssertion(t *testing.T) {
	failing := strings.Replace(letScenario, "type_name: i32", "type_name: bool", 1)
	dir := scenarioDir(t, map[string]string{
		"let_var.yaml": letScenario,
		"wrong.yaml":   strings.Replace(failing, "name: let_var", "name: wrong", 1),
		"broken.yaml":  "name: [",
	})

	out, err := execute(t, "check", "--quiet", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.NotContains(t, out, "type inference  run=", "--quiet prints no reports")
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "✓ let_var")
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Assertion failed: type_of")
	assert.Contains(t, out, "Check Summary: 1 passed, 2 failed, 3 total")

	// Source order is kept: broken, let_var, wrong.
	assert.Less(t, strings.Index(out, "broken.yaml"), strings.Index(out, "let_var"))
	assert.Less(t, strings.Index(out, "let_var"), strings.Index(out, "wrong"))
}

func TestCheckCommand_Filter(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"let_var.yaml": letScenario,
		"broken.yaml":  "name: [",
	})

	out, err := execute(t, "check", "--filter", "let*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")

	out, err = execute(t, "check", "--filter", "none*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, err = execute(t, "check", "--filter", "[", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestCheckCommand_Golden(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"let_var.yaml": letScenario})
	golden := filepath.Join(dir, "golden", "let_var.golden")

	_, err := execute(t, "check", "--quiet", "--update", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "type inference  run=cli-let\n"))
	assert.NotContains(t, string(data), "\x1b[", "golden files are uncoloured")

	// Colour on the terminal does not affect the comparison.
	_, err = execute(t, "check", "--color", "always", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("stale\n"), 0o644))
	out, err := execute(t, "check", "--quiet", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "report does not match golden file")
}

func TestCheckCommand_JSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"let_var.yaml": letScenario})

	out, err := execute(t, "--format", "json", "check", dir)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)

	sr := resp.Data.Scenarios[0]
	assert.Equal(t, "let_var", sr.Name)
	require.NotNil(t, sr.Types)
	require.NotNil(t, sr.Linearity)
	assert.Equal(t, "cli-let", sr.Types.RunID)
	assert.Len(t, sr.Types.Typings, 3)
}

func TestCheckCommand_JSONFailure(t *testing.T) {
	failing := strings.Replace(letScenario, "type_name: i32", "type_name: u32", 1)
	dir := scenarioDir(t, map[string]string{"let_var.yaml": failing})

	out, err := execute(t, "--format", "json", "check", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "1 scenario(s) failed")
}

func TestCheckCommand_SQLiteBackend(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"let_var.yaml": letScenario})

	out, err := execute(t, "--backend", "sqlite", "check", "--quiet", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ let_var")
}

func TestGoldenFilePath(t *testing.T) {
	path, ok := goldenFilePath(filepath.Join("a", "b", "let.yaml"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join("a", "b", "golden", "let.golden"), path)

	_, ok = goldenFilePath("builtin:scenario_a.yaml")
	assert.False(t, ok)
}
