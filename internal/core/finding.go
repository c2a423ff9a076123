package core

import (
	"fmt"
	"sort"
	"strings"
)

// Severity 严重性等级（封闭枚举）
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String 返回显示标记
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Symbol 返回显示符号
func (s Severity) Symbol() string {
	switch s {
	case SeverityError:
		return "✗"
	case SeverityWarning:
		return "⚠"
	default:
		return "ℹ"
	}
}

// SARIFLevel 映射到 SARIF 级别
func (s Severity) SARIFLevel() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

// MarshalText 以显示标记序列化（JSON 输出使用）
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 读取 JSON 报告时还原严重性
func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity 解析严重性字符串
func ParseSeverity(str string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "info", "note":
		return SeverityInfo, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity: %s", str)
	}
}

// Finding 表示一条规则命中（不可变值）
type Finding struct {
	RuleCode   string   `json:"rule_code"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func newFinding(severity Severity, file, code, message string) Finding {
	return Finding{
		RuleCode: code,
		Severity: severity,
		Message:  message,
		File:     file,
		Line:     1,
		Column:   1,
	}
}

// NewError 创建 Error 级别的命中
func NewError(file, code, message string) Finding {
	return newFinding(SeverityError, file, code, message)
}

// NewWarning 创建 Warning 级别的命中
func NewWarning(file, code, message string) Finding {
	return newFinding(SeverityWarning, file, code, message)
}

// NewInfo 创建 Info 级别的命中
func NewInfo(file, code, message string) Finding {
	return newFinding(SeverityInfo, file, code, message)
}

// At 设置位置（1 基索引，非法值回落到 1）
func (f Finding) At(line, column int) Finding {
	if line < 1 {
		line = 1
	}
	if column < 1 {
		column = 1
	}
	f.Line = line
	f.Column = column
	return f
}

// WithSuggestion 附加修复建议
func (f Finding) WithSuggestion(text string) Finding {
	f.Suggestion = text
	return f
}

// Key 去重键 (rule_code, file, line)
func (f Finding) Key() string {
	return fmt.Sprintf("%s|%s|%d", f.RuleCode, f.File, f.Line)
}

// Report 有序命中列表及计数器
type Report struct {
	Findings      []Finding `json:"findings"`
	ErrorCount    int       `json:"error_count"`
	WarningCount  int       `json:"warning_count"`
	InfoCount     int       `json:"info_count"`
	FilesAnalyzed int       `json:"files_analyzed"`
	LinesAnalyzed int       `json:"lines_analyzed"`
}

// NewReport 创建空报告
func NewReport() *Report {
	return &Report{Findings: make([]Finding, 0)}
}

// Add 追加命中并更新计数器
func (r *Report) Add(f Finding) {
	r.Findings = append(r.Findings, f)
	switch f.Severity {
	case SeverityError:
		r.ErrorCount++
	case SeverityWarning:
		r.WarningCount++
	default:
		r.InfoCount++
	}
}

// HasErrors 是否存在 Error 级别命中
func (r *Report) HasErrors() bool {
	return r.ErrorCount > 0
}

// Len 命中数量
func (r *Report) Len() int {
	return len(r.Findings)
}

// Merge 拼接命中并累加统计（不去重）
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for _, f := range other.Findings {
		r.Add(f)
	}
	r.FilesAnalyzed += other.FilesAnalyzed
	r.LinesAnalyzed += other.LinesAnalyzed
}

// Filter 返回只保留 keep 为真的命中的新报告，统计值保持不变
func (r *Report) Filter(keep func(Finding) bool) *Report {
	out := NewReport()
	for _, f := range r.Findings {
		if keep(f) {
			out.Add(f)
		}
	}
	out.FilesAnalyzed = r.FilesAnalyzed
	out.LinesAnalyzed = r.LinesAnalyzed
	return out
}

// SortByLocation 按文件、行、列、规则排序（稳定）
func (r *Report) SortByLocation() {
	sort.SliceStable(r.Findings, func(i, j int) bool {
		a, b := r.Findings[i], r.Findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.RuleCode < b.RuleCode
	})
}

// CombinePasses 合并同一文件的两遍分析结果，按 (rule_code, file, line) 去重，保留先出现的一份。
// 两遍分析的是同一个文件，所以文件数/行数取较大值而不是相加。
func CombinePasses(primary, secondary *Report) *Report {
	out := NewReport()
	seen := make(map[string]bool)
	for _, rep := range []*Report{primary, secondary} {
		if rep == nil {
			continue
		}
		for _, f := range rep.Findings {
			key := f.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out.Add(f)
		}
		if rep.FilesAnalyzed > out.FilesAnalyzed {
			out.FilesAnalyzed = rep.FilesAnalyzed
		}
		if rep.LinesAnalyzed > out.LinesAnalyzed {
			out.LinesAnalyzed = rep.LinesAnalyzed
		}
	}
	return out
}
