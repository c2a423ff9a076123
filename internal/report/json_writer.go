package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/paiml/probar-sub002/internal/core"
)

// JSONReport JSON 格式报告
type JSONReport struct {
	ScanID      string         `json:"scan_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Tool        ToolInfo       `json:"tool"`
	Root        string         `json:"root,omitempty"`
	Duration    string         `json:"duration,omitempty"`
	Summary     Summary        `json:"summary"`
	Findings    []core.Finding `json:"findings"`
}

// ToolInfo 工具信息
type ToolInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Summary 命中统计摘要
type Summary struct {
	Total         int            `json:"total"`
	ErrorCount    int            `json:"error_count"`
	WarningCount  int            `json:"warning_count"`
	InfoCount     int            `json:"info_count"`
	ByRule        map[string]int `json:"by_rule"`
	FilesAnalyzed int            `json:"files_analyzed"`
	LinesAnalyzed int            `json:"lines_analyzed"`
}

// JSONWriter JSON 报告写入器
type JSONWriter struct {
	writer io.Writer
	pretty bool
}

// NewJSONWriter 创建新的 JSON 写入器
func NewJSONWriter(writer io.Writer, options ...JSONOption) *JSONWriter {
	w := &JSONWriter{writer: writer}

	for _, opt := range options {
		opt(w)
	}

	return w
}

// JSONOption JSON 选项
type JSONOption func(*JSONWriter)

// WithPrettyJSON 启用美化 JSON 输出
func WithPrettyJSON() JSONOption {
	return func(w *JSONWriter) {
		w.pretty = true
	}
}

// Write 生成并写入报告
func (w *JSONWriter) Write(result *ScanResult) error {
	report := w.generateReport(result)

	var data []byte
	var err error

	if w.pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}

	if _, err = w.writer.Write(data); err != nil {
		return err
	}
	_, err = w.writer.Write([]byte("\n"))
	return err
}

// WriteToFile 写入到文件
func (w *JSONWriter) WriteToFile(result *ScanResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	writer := NewJSONWriter(file, w.options()...)
	return writer.Write(result)
}

// generateReport 生成报告数据
func (w *JSONWriter) generateReport(result *ScanResult) *JSONReport {
	if result == nil {
		result = &ScanResult{}
	}
	rep := result.Report
	if rep == nil {
		rep = core.NewReport()
	}
	version := result.Version
	if version == "" {
		version = "dev"
	}

	report := &JSONReport{
		ScanID:      uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Tool: ToolInfo{
			Name:        ToolName,
			Version:     version,
			Description: "Shared-state closure linter for Rust",
		},
		Root: result.Root,
		Summary: Summary{
			Total:         rep.Len(),
			ErrorCount:    rep.ErrorCount,
			WarningCount:  rep.WarningCount,
			InfoCount:     rep.InfoCount,
			ByRule:        make(map[string]int),
			FilesAnalyzed: rep.FilesAnalyzed,
			LinesAnalyzed: rep.LinesAnalyzed,
		},
		Findings: rep.Findings,
	}
	if result.Duration > 0 {
		report.Duration = result.Duration.String()
	}
	if report.Findings == nil {
		report.Findings = []core.Finding{}
	}

	for _, f := range rep.Findings {
		report.Summary.ByRule[f.RuleCode]++
	}

	return report
}

// options 获取选项
func (w *JSONWriter) options() []JSONOption {
	opts := []JSONOption{}
	if w.pretty {
		opts = append(opts, WithPrettyJSON())
	}
	return opts
}
