package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiml/probar-sub002/internal/core"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STATESYNC_LOG_LEVEL", "off")
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const brokenFactory = `fn spawn(&mut self) {
    let state = Rc::new(Cell::new(0));
    let c = move || { state.borrow_mut(); };
}
`

func TestRulesCommand(t *testing.T) {
	out, err := execute(t, "rules")
	require.NoError(t, err)
	for _, r := range core.Rules() {
		assert.Contains(t, out, r.Code)
	}

	out, err = execute(t, "rules", "--json")
	require.NoError(t, err)
	var rules []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	assert.Len(t, rules, len(core.Rules()))
	for _, r := range rules {
		if r["code"] == core.RuleMethodChain {
			assert.Contains(t, r["description"], "never reported")
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	var v Versions
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, CoreVersion, v.Version)
	assert.NotEmpty(t, v.GolangVersion)
}

func TestScanReportsErrors(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib.rs", brokenFactory)

	out, err := execute(t, "scan", "--format", "json", dir)
	assert.ErrorIs(t, err, errFindings)

	var decoded struct {
		Summary struct {
			ErrorCount    int `json:"error_count"`
			WarningCount  int `json:"warning_count"`
			FilesAnalyzed int `json:"files_analyzed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 1, decoded.Summary.ErrorCount)
	assert.Equal(t, 1, decoded.Summary.WarningCount)
	assert.Equal(t, 1, decoded.Summary.FilesAnalyzed)
}

func TestScanSeverityFilterClearsExitCode(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "lib.rs", brokenFactory)

	out, err := execute(t, "scan", "--disable", "SS-001", "--min-severity", "warning", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[SS-005]")
	assert.NotContains(t, out, "[SS-001]")
}

func TestScanCleanProject(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib.rs", `impl W {
    fn spawn(&self) {
        let state_clone = self.state.clone();
        let cb = move || state_clone.set(1);
    }
}
`)
	out, err := execute(t, "scan", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No shared-state issues found.")
	assert.Contains(t, out, "Files analyzed: 1")
}

func TestScanWritesReportFile(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib.rs", brokenFactory)
	target := filepath.Join(dir, "out", "statesync.sarif")

	out, err := execute(t, "scan", "-f", "sarif", "-o", target, dir)
	assert.ErrorIs(t, err, errFindings)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ruleId": "SS-001"`)
}

func TestScanWritesAllFormats(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib.rs", brokenFactory)
	target := filepath.Join(dir, "out", "findings")

	_, err := execute(t, "scan", "--format", "all", "-o", target, dir)
	assert.ErrorIs(t, err, errFindings)

	for _, ext := range []string{"json", "text", "sarif"} {
		data, err := os.ReadFile(target + "." + ext)
		require.NoError(t, err, ext)
		assert.Contains(t, string(data), "SS-001", ext)
	}
}

func TestScanRejectsBadInput(t *testing.T) {
	_, err := execute(t, "scan")
	assert.Error(t, err)

	_, err = execute(t, "scan", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "cannot analyse")

	_, err = execute(t, "scan", "--min-severity", "fatal", t.TempDir())
	assert.Error(t, err)

	_, err = execute(t, "scan", "--format", "xml", t.TempDir())
	assert.ErrorContains(t, err, "output.format")
}

func TestScanWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "lib.rs", brokenFactory)
	cfg := writeSource(t, dir, "statesync.yaml", "scan:\n  disabled_rules: [SS-001]\noutput:\n  format: json\n")

	out, err := execute(t, "--config", cfg, "scan", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `"SS-005"`)
	assert.NotContains(t, out, `"rule_code": "SS-001"`)
}
