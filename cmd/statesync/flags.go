package main

import (
	"github.com/spf13/pflag"

	"github.com/paiml/probar-sub002/internal/core"
)

// severityValue 把 --min-severity 解析为 core.Severity
type severityValue struct {
	value *core.Severity
	set   bool
}

var _ pflag.Value = (*severityValue)(nil)

func newSeverityValue(p *core.Severity) *severityValue {
	return &severityValue{value: p}
}

func (v *severityValue) String() string {
	if v.value == nil {
		return core.SeverityInfo.String()
	}
	return v.value.String()
}

func (v *severityValue) Set(s string) error {
	sev, err := core.ParseSeverity(s)
	if err != nil {
		return err
	}
	*v.value = sev
	v.set = true
	return nil
}

func (v *severityValue) Type() string {
	return "severity"
}
