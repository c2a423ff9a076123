package report

import (
	"fmt"
	"io"
	"os"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/paiml/probar-sub002/internal/core"
)

// InformationURI SARIF run 的工具主页
const InformationURI = "https://github.com/paiml/probar-sub002"

// SARIFWriter SARIF 格式报告写入器
type SARIFWriter struct {
	writer io.Writer
}

// NewSARIFWriter 创建新的 SARIF 写入器
func NewSARIFWriter(writer io.Writer) *SARIFWriter {
	return &SARIFWriter{writer: writer}
}

// Write 生成并写入 SARIF 报告
func (w *SARIFWriter) Write(result *ScanResult) error {
	sarifReport, err := BuildSARIF(result)
	if err != nil {
		return err
	}
	return sarifReport.PrettyWrite(w.writer)
}

// WriteToFile 写入到文件
func (w *SARIFWriter) WriteToFile(result *ScanResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	return NewSARIFWriter(file).Write(result)
}

// BuildSARIF 将报告转换为 SARIF 2.1.0；规则表包含全部规则，结果按报告顺序
func BuildSARIF(result *ScanResult) (*sarif.Report, error) {
	sarifReport, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(ToolName, InformationURI)
	for _, info := range core.Rules() {
		run.AddRule(info.Code).
			WithDescription(info.Description).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: info.Severity.SARIFLevel(),
			})
	}

	if result != nil && result.Report != nil {
		for _, f := range result.Report.Findings {
			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().
					WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.File)).
					WithRegion(sarif.NewRegion().WithStartLine(f.Line).WithStartColumn(f.Column)),
			)

			res := sarif.NewRuleResult(f.RuleCode).
				WithMessage(sarif.NewTextMessage(f.Message)).
				WithLevel(f.Severity.SARIFLevel()).
				WithLocations([]*sarif.Location{location})
			if f.Suggestion != "" {
				res.Properties = map[string]interface{}{"suggestion": f.Suggestion}
			}
			run.AddResult(res)
		}
	}

	sarifReport.AddRun(run)
	return sarifReport, nil
}
