package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiml/probar-sub002/internal/core"
)

func sampleResult() *ScanResult {
	rep := core.NewReport()
	rep.Add(core.NewInfo("src/lib.rs", core.RuleAliasHandle, "type alias `Shared` wraps shared handle type `Rc<RefCell<T>>`").At(1, 1))
	rep.Add(core.NewError("src/lib.rs", core.RuleDirectConstruct, "`state` is a freshly constructed shared handle").
		At(4, 9).WithSuggestion("let state_clone = self.state.clone();"))
	rep.Add(core.NewWarning("src/app.rs", core.RuleMissingSelfClone, "closure captures `state`").At(12, 17))
	rep.FilesAnalyzed = 2
	rep.LinesAnalyzed = 40
	return &ScanResult{Report: rep, Root: "src", Duration: 1500 * time.Millisecond, Version: "1.2.3"}
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextWriter(&buf, WithVerbose()).Write(sampleResult()))
	out := buf.String()

	app := strings.Index(out, "File: src/app.rs")
	lib := strings.Index(out, "File: src/lib.rs")
	require.True(t, app >= 0 && lib >= 0)
	assert.Less(t, app, lib, "files are listed in sorted order")

	assert.Contains(t, out, "✗ error")
	assert.Contains(t, out, "4:9")
	assert.Contains(t, out, "[SS-001]")
	assert.Contains(t, out, "suggestion: let state_clone = self.state.clone();")
	assert.Contains(t, out, "Errors:   1")
	assert.Contains(t, out, "Warnings: 1")
	assert.Contains(t, out, "Infos:    1")
	assert.Contains(t, out, "Files analyzed: 2")
	assert.Contains(t, out, "Duration: 1.5s")
}

func TestTextWriterEmpty(t *testing.T) {
	var buf bytes.Buffer
	rep := core.NewReport()
	rep.FilesAnalyzed = 3
	require.NoError(t, NewTextWriter(&buf, WithoutStats()).Write(&ScanResult{Report: rep}))
	assert.Contains(t, buf.String(), "No shared-state issues found.")
	assert.NotContains(t, buf.String(), "Summary:")
}

func TestTextWriterHidesSuggestionsByDefault(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextWriter(&buf).Write(sampleResult()))
	assert.NotContains(t, buf.String(), "suggestion:")
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).Write(sampleResult()))

	var decoded JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	_, err := uuid.Parse(decoded.ScanID)
	assert.NoError(t, err)
	assert.Equal(t, ToolName, decoded.Tool.Name)
	assert.Equal(t, "1.2.3", decoded.Tool.Version)
	assert.Equal(t, "1.5s", decoded.Duration)
	assert.Equal(t, 3, decoded.Summary.Total)
	assert.Equal(t, map[string]int{"SS-006": 1, "SS-001": 1, "SS-005": 1}, decoded.Summary.ByRule)
	assert.Equal(t, 40, decoded.Summary.LinesAnalyzed)
	require.Len(t, decoded.Findings, 3)
	assert.Equal(t, "let state_clone = self.state.clone();", decoded.Findings[1].Suggestion)

	// 严重性以文本标记输出
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	first := raw["findings"].([]interface{})[1].(map[string]interface{})
	assert.Equal(t, "error", first["severity"])
	assert.Equal(t, "SS-001", first["rule_code"])
}

func TestJSONWriterEmptyReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf, WithPrettyJSON()).Write(&ScanResult{}))
	assert.Contains(t, buf.String(), `"findings": []`)
	assert.Contains(t, buf.String(), `"version": "dev"`)
	assert.True(t, strings.HasSuffix(buf.String(), "}\n"))
}

func TestJSONWriterNilResult(t *testing.T) {
	var buf bytes.Buffer
	require.NotPanics(t, func() {
		require.NoError(t, NewJSONWriter(&buf).Write(nil))
	})
	var decoded JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Zero(t, decoded.Summary.Total)
	assert.Empty(t, decoded.Findings)

	buf.Reset()
	require.NoError(t, NewTextWriter(&buf).Write(nil))
	assert.Contains(t, buf.String(), "No shared-state issues found.")
}

func TestBuildSARIF(t *testing.T) {
	doc, err := BuildSARIF(sampleResult())
	require.NoError(t, err)
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]

	require.NotNil(t, run.Tool.Driver)
	assert.Equal(t, ToolName, run.Tool.Driver.Name)
	assert.Len(t, run.Tool.Driver.Rules, len(core.Rules()))

	require.Len(t, run.Results, 3)
	res := run.Results[1]
	assert.Equal(t, "SS-001", *res.RuleID)
	assert.Equal(t, "error", *res.Level)
	loc := res.Locations[0].PhysicalLocation
	assert.Equal(t, "src/lib.rs", *loc.ArtifactLocation.URI)
	assert.Equal(t, 4, *loc.Region.StartLine)
	assert.Equal(t, 9, *loc.Region.StartColumn)
	assert.Equal(t, "let state_clone = self.state.clone();", res.Properties["suggestion"])

	assert.Equal(t, "note", *run.Results[0].Level)
	assert.Equal(t, "warning", *run.Results[2].Level)
}

func TestSARIFWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSARIFWriter(&buf).Write(sampleResult()))

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "2.1.0", raw["version"])
	assert.Len(t, raw["runs"], 1)
}

func TestManagerGenerateAll(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(WithFormat(FormatAll), WithOutputDir(filepath.Join(dir, "out")), WithFilename("result.txt"))

	files, err := m.Generate(sampleResult())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "out", "result.json"),
		filepath.Join(dir, "out", "result.text"),
		filepath.Join(dir, "out", "result.sarif"),
	}, files)
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestManagerDefaultFilename(t *testing.T) {
	dir := t.TempDir()
	files, err := NewManager(WithFormat(FormatJSON), WithOutputDir(dir)).Generate(sampleResult())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "statesync_report.json")}, files)

	files, err = NewManager(WithFormat(FormatSARIF), WithOutputDir(dir), WithTimestamp()).Generate(sampleResult())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Regexp(t, `statesync_report_\d{8}_\d{6}\.sarif$`, files[0])
}

func TestManagerWriteTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewManager(WithFormat(FormatJSON)).WriteTo(&buf, sampleResult()))
	assert.True(t, json.Valid(buf.Bytes()))

	assert.Error(t, NewManager(WithFormat(FormatAll)).WriteTo(&buf, sampleResult()))
	assert.Error(t, NewManager(WithFormat("xml")).WriteTo(&buf, sampleResult()))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"SARIF", FormatSARIF, false},
		{"", FormatText, false},
		{"all", FormatAll, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	assert.Equal(t, "Unknown format", FormatDescription("xml"))
	assert.Len(t, SupportedFormats(), 4)
}
