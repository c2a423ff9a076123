package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paiml/probar-sub002/internal/core"
)

// Format 报告格式类型
type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatSARIF Format = "sarif"
	FormatAll   Format = "all"
)

// ToolName 报告中的工具名
const ToolName = "statesync"

// ScanResult 一次分析运行的结果
type ScanResult struct {
	Report   *core.Report
	Root     string
	Duration time.Duration
	Version  string
}

// Writer 报告写入器接口
type Writer interface {
	Write(result *ScanResult) error
	WriteToFile(result *ScanResult, filename string) error
}

// Manager 报告管理器
type Manager struct {
	format    Format
	outputDir string
	timestamp bool
	filename  string
	color     bool
}

// ManagerOption 管理器选项
type ManagerOption func(*Manager)

// WithFormat 设置报告格式
func WithFormat(format Format) ManagerOption {
	return func(m *Manager) {
		m.format = format
	}
}

// WithOutputDir 设置输出目录
func WithOutputDir(dir string) ManagerOption {
	return func(m *Manager) {
		m.outputDir = dir
	}
}

// WithTimestamp 添加时间戳到文件名
func WithTimestamp() ManagerOption {
	return func(m *Manager) {
		m.timestamp = true
	}
}

// WithFilename 设置自定义文件名
func WithFilename(filename string) ManagerOption {
	return func(m *Manager) {
		m.filename = filename
	}
}

// WithColorText 文本报告使用彩色严重性标记
func WithColorText() ManagerOption {
	return func(m *Manager) {
		m.color = true
	}
}

// NewManager 创建新的报告管理器
func NewManager(options ...ManagerOption) *Manager {
	m := &Manager{
		format:    FormatText,
		outputDir: ".",
	}

	for _, opt := range options {
		opt(m)
	}

	return m
}

// CreateWriter 创建报告写入器
func (m *Manager) CreateWriter(format Format, writer io.Writer) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(writer, WithPrettyJSON()), nil
	case FormatText:
		if m.color {
			return NewTextWriter(writer, WithColor()), nil
		}
		return NewTextWriter(writer), nil
	case FormatSARIF:
		return NewSARIFWriter(writer), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteTo 以单一格式写到 w（通常是 stdout）
func (m *Manager) WriteTo(w io.Writer, result *ScanResult) error {
	if m.format == FormatAll {
		return fmt.Errorf("format %s can only be written to files", FormatAll)
	}
	writer, err := m.CreateWriter(m.format, w)
	if err != nil {
		return err
	}
	return writer.Write(result)
}

// Generate 生成报告文件，返回写出的路径
func (m *Manager) Generate(result *ScanResult) ([]string, error) {
	var formats []Format
	switch m.format {
	case FormatAll:
		formats = []Format{FormatJSON, FormatText, FormatSARIF}
	case FormatJSON, FormatText, FormatSARIF:
		formats = []Format{m.format}
	default:
		return nil, fmt.Errorf("unsupported format: %s", m.format)
	}

	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var outputFiles []string
	for _, format := range formats {
		filePath := filepath.Join(m.outputDir, m.generateFilename(format))
		if err := m.writeFile(result, format, filePath); err != nil {
			return nil, err
		}
		outputFiles = append(outputFiles, filePath)
	}
	return outputFiles, nil
}

func (m *Manager) writeFile(result *ScanResult, format Format, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	writer, err := m.CreateWriter(format, file)
	if err != nil {
		return err
	}
	if err := writer.Write(result); err != nil {
		return fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return nil
}

// generateFilename 生成文件名；多格式输出时自定义文件名按格式替换扩展名
func (m *Manager) generateFilename(format Format) string {
	if m.filename != "" {
		if m.format == FormatAll {
			return strings.TrimSuffix(m.filename, filepath.Ext(m.filename)) + "." + string(format)
		}
		return m.filename
	}

	baseName := ToolName + "_report"
	if m.timestamp {
		return fmt.Sprintf("%s_%s.%s", baseName, time.Now().Format("20060102_150405"), format)
	}
	return fmt.Sprintf("%s.%s", baseName, format)
}

// ParseFormat 解析格式字符串
func ParseFormat(formatStr string) (Format, error) {
	switch strings.ToLower(formatStr) {
	case "json":
		return FormatJSON, nil
	case "text", "":
		return FormatText, nil
	case "sarif":
		return FormatSARIF, nil
	case "all":
		return FormatAll, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", formatStr)
	}
}

// SupportedFormats 获取支持的格式列表
func SupportedFormats() []Format {
	return []Format{FormatJSON, FormatText, FormatSARIF, FormatAll}
}

// FormatDescription 获取格式描述
func FormatDescription(format Format) string {
	descriptions := map[Format]string{
		FormatJSON:  "JSON format - Machine-readable output",
		FormatText:  "Text format - Human-readable console output",
		FormatSARIF: "SARIF format - Static Analysis Results Interchange Format",
		FormatAll:   "All formats - Generate reports in all supported formats",
	}

	if desc, ok := descriptions[format]; ok {
		return desc
	}

	return "Unknown format"
}
