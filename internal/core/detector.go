package core

import (
	"fmt"
)

// Detector 检测器接口：一遍分析，输入内存中的源码，输出该文件的报告
type Detector interface {
	// Name 返回检测器名称
	Name() string

	// Description 返回检测器描述
	Description() string

	// Run 执行检测
	Run(ctx *AnalysisContext) (*Report, error)
}

// BaseDetector 基础检测器，提供通用功能
type BaseDetector struct {
	name        string
	description string
}

// NewBaseDetector 创建基础检测器
func NewBaseDetector(name, description string) *BaseDetector {
	return &BaseDetector{
		name:        name,
		description: description,
	}
}

// Name 返回检测器名称
func (d *BaseDetector) Name() string {
	return d.name
}

// Description 返回检测器描述
func (d *BaseDetector) Description() string {
	return d.description
}

// NewFileReport 创建单文件报告并填好文件数/行数
func (d *BaseDetector) NewFileReport(ctx *AnalysisContext) *Report {
	r := NewReport()
	r.FilesAnalyzed = 1
	r.LinesAnalyzed = ctx.LineCount()
	return r
}

// CreateFinding 按严重性创建命中并定位
func (d *BaseDetector) CreateFinding(ctx *AnalysisContext, severity Severity, code, message string, p Position) Finding {
	var f Finding
	switch severity {
	case SeverityError:
		f = NewError(ctx.FilePath, code, message)
	case SeverityWarning:
		f = NewWarning(ctx.FilePath, code, message)
	default:
		f = NewInfo(ctx.FilePath, code, message)
	}
	return f.At(p.Line, p.Column)
}

// ErrorWrapper 包装检测器错误
type ErrorWrapper struct {
	DetectorName string
	Err          error
}

func (e *ErrorWrapper) Error() string {
	return fmt.Sprintf("detector %s: %v", e.DetectorName, e.Err)
}

// Unwrap 支持 errors.Is / errors.As
func (e *ErrorWrapper) Unwrap() error {
	return e.Err
}

// WrapError 包装检测器错误
func WrapError(detector Detector, err error) error {
	return &ErrorWrapper{
		DetectorName: detector.Name(),
		Err:          err,
	}
}
