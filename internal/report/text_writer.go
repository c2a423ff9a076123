package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/paiml/probar-sub002/internal/core"
)

// TextWriter 文本格式报告写入器
type TextWriter struct {
	writer    io.Writer
	verbose   bool
	showColor bool
	showStats bool
}

// NewTextWriter 创建新的文本写入器
func NewTextWriter(writer io.Writer, options ...TextOption) *TextWriter {
	w := &TextWriter{
		writer:    writer,
		showStats: true,
	}

	for _, opt := range options {
		opt(w)
	}

	return w
}

// TextOption 文本选项
type TextOption func(*TextWriter)

// WithVerbose 输出修复建议
func WithVerbose() TextOption {
	return func(w *TextWriter) {
		w.verbose = true
	}
}

// WithColor 启用彩色输出
func WithColor() TextOption {
	return func(w *TextWriter) {
		w.showColor = true
	}
}

// WithoutStats 禁用统计信息
func WithoutStats() TextOption {
	return func(w *TextWriter) {
		w.showStats = false
	}
}

// Write 生成并写入文本报告
func (w *TextWriter) Write(result *ScanResult) error {
	if result == nil {
		result = &ScanResult{}
	}
	rep := result.Report
	if rep == nil {
		rep = core.NewReport()
	}

	if rep.Len() == 0 {
		fmt.Fprintf(w.writer, "\n✓ No shared-state issues found.\n\n")
	} else {
		w.writeFindings(rep)
	}

	if w.showStats {
		w.writeStatistics(result, rep)
	}
	return nil
}

// WriteToFile 写入到文件
func (w *TextWriter) WriteToFile(result *ScanResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	writer := NewTextWriter(file, w.options()...)
	return writer.Write(result)
}

// writeFindings 按文件分组输出命中
func (w *TextWriter) writeFindings(rep *core.Report) {
	groups := make(map[string][]core.Finding)
	for _, f := range rep.Findings {
		groups[f.File] = append(groups[f.File], f)
	}
	files := make([]string, 0, len(groups))
	for name := range groups {
		files = append(files, name)
	}
	sort.Strings(files)

	for _, filename := range files {
		fmt.Fprintf(w.writer, "\nFile: %s\n", filename)
		fmt.Fprintf(w.writer, "%s\n", strings.Repeat("-", 50))

		tw := tabwriter.NewWriter(w.writer, 0, 8, 2, ' ', 0)
		for _, f := range groups[filename] {
			fmt.Fprintf(tw, "  %s\t%d:%d\t[%s]\t%s\n",
				w.severityToken(f.Severity),
				f.Line,
				f.Column,
				f.RuleCode,
				f.Message,
			)
			if w.verbose && f.Suggestion != "" {
				fmt.Fprintf(tw, "  \t\t\tsuggestion: %s\n", f.Suggestion)
			}
		}
		tw.Flush()
	}
	fmt.Fprintf(w.writer, "\n")
}

// writeStatistics 写入统计信息
func (w *TextWriter) writeStatistics(result *ScanResult, rep *core.Report) {
	fmt.Fprintf(w.writer, "Summary:\n")
	fmt.Fprintf(w.writer, "--------\n")
	fmt.Fprintf(w.writer, "  Errors:   %d\n", rep.ErrorCount)
	fmt.Fprintf(w.writer, "  Warnings: %d\n", rep.WarningCount)
	fmt.Fprintf(w.writer, "  Infos:    %d\n", rep.InfoCount)
	fmt.Fprintf(w.writer, "  Files analyzed: %d\n", rep.FilesAnalyzed)
	fmt.Fprintf(w.writer, "  Lines analyzed: %d\n", rep.LinesAnalyzed)
	if result.Duration > 0 {
		fmt.Fprintf(w.writer, "  Duration: %s\n", result.Duration)
	}
	fmt.Fprintf(w.writer, "\n")
}

// severityToken 严重性符号与名称，启用颜色时着色
func (w *TextWriter) severityToken(sev core.Severity) string {
	token := sev.Symbol() + " " + sev.String()
	if !w.showColor {
		return token
	}
	switch sev {
	case core.SeverityError:
		return color.New(color.FgRed, color.Bold).Sprint(token)
	case core.SeverityWarning:
		return color.New(color.FgYellow).Sprint(token)
	default:
		return color.New(color.FgCyan).Sprint(token)
	}
}

// options 获取选项
func (w *TextWriter) options() []TextOption {
	opts := []TextOption{}
	if w.verbose {
		opts = append(opts, WithVerbose())
	}
	if w.showColor {
		opts = append(opts, WithColor())
	}
	if !w.showStats {
		opts = append(opts, WithoutStats())
	}
	return opts
}
