package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityTokens(t *testing.T) {
	tests := []struct {
		sev    Severity
		name   string
		symbol string
		level  string
	}{
		{SeverityError, "error", "✗", "error"},
		{SeverityWarning, "warning", "⚠", "warning"},
		{SeverityInfo, "info", "ℹ", "note"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.sev.String())
			assert.Equal(t, tt.symbol, tt.sev.Symbol())
			assert.Equal(t, tt.level, tt.sev.SARIFLevel())

			parsed, err := ParseSeverity(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.sev, parsed)
		})
	}

	sev, err := ParseSeverity(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, SeverityWarning, sev)

	_, err = ParseSeverity("critical")
	assert.Error(t, err)
}

func TestFindingConstructors(t *testing.T) {
	f := NewError("a.rs", RuleDirectConstruct, "boom")
	assert.Equal(t, SeverityError, f.Severity)
	assert.Equal(t, 1, f.Line)
	assert.Equal(t, 1, f.Column)
	assert.Empty(t, f.Suggestion)

	g := f.At(12, 5).WithSuggestion("let x_clone = self.x.clone();")
	assert.Equal(t, 12, g.Line)
	assert.Equal(t, 5, g.Column)
	assert.Equal(t, "let x_clone = self.x.clone();", g.Suggestion)
	// 原值不变
	assert.Equal(t, 1, f.Line)
	assert.Empty(t, f.Suggestion)

	clamped := NewWarning("a.rs", RuleAliasHandle, "w").At(0, -3)
	assert.Equal(t, 1, clamped.Line)
	assert.Equal(t, 1, clamped.Column)

	assert.Equal(t, SeverityInfo, NewInfo("a.rs", RuleHelperHandle, "i").Severity)
}

func TestReportCounters(t *testing.T) {
	r := NewReport()
	r.Add(NewError("a.rs", RuleDirectConstruct, "e"))
	r.Add(NewWarning("a.rs", RuleMissingSelfClone, "w"))
	r.Add(NewWarning("a.rs", RuleShadowedField, "w"))
	r.Add(NewInfo("a.rs", RuleAliasHandle, "i"))

	assert.Equal(t, 4, r.Len())
	assert.Equal(t, 1, r.ErrorCount)
	assert.Equal(t, 2, r.WarningCount)
	assert.Equal(t, 1, r.InfoCount)
	assert.True(t, r.HasErrors())
	assert.False(t, NewReport().HasErrors())
}

func reportWith(files, lines int, findings ...Finding) *Report {
	r := NewReport()
	for _, f := range findings {
		r.Add(f)
	}
	r.FilesAnalyzed = files
	r.LinesAnalyzed = lines
	return r
}

func merged(reports ...*Report) *Report {
	out := NewReport()
	for _, r := range reports {
		out.Merge(r)
	}
	return out
}

func TestReportMergeAssociativeAndCommutative(t *testing.T) {
	a := reportWith(1, 10, NewError("a.rs", RuleDirectConstruct, "a"))
	b := reportWith(1, 20, NewWarning("b.rs", RuleMissingSelfClone, "b"), NewInfo("b.rs", RuleAliasHandle, "b"))
	c := reportWith(2, 5)

	left := merged(merged(a, b), c)
	right := merged(a, merged(b, c))
	swapped := merged(c, b, a)

	for _, r := range []*Report{right, swapped} {
		assert.ElementsMatch(t, left.Findings, r.Findings)
		assert.Equal(t, left.ErrorCount, r.ErrorCount)
		assert.Equal(t, left.WarningCount, r.WarningCount)
		assert.Equal(t, left.InfoCount, r.InfoCount)
		assert.Equal(t, left.FilesAnalyzed, r.FilesAnalyzed)
		assert.Equal(t, left.LinesAnalyzed, r.LinesAnalyzed)
	}
	assert.Equal(t, 4, left.FilesAnalyzed)
	assert.Equal(t, 35, left.LinesAnalyzed)
	assert.Equal(t, 3, left.Len())
}

func TestReportMergeKeepsDuplicates(t *testing.T) {
	f := NewError("a.rs", RuleDirectConstruct, "dup").At(3, 1)
	r := merged(reportWith(1, 1, f), reportWith(1, 1, f))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, r.ErrorCount)
}

func TestCombinePassesDeduplicates(t *testing.T) {
	tree := reportWith(1, 30,
		NewError("a.rs", RuleDirectConstruct, "tree").At(4, 9),
		NewWarning("a.rs", RuleMissingSelfClone, "tree").At(6, 17),
	)
	text := reportWith(1, 30,
		NewError("a.rs", RuleDirectConstruct, "text").At(4, 5),
		NewInfo("a.rs", RuleAliasHandle, "text").At(1, 1),
	)

	out := CombinePasses(tree, text)
	require.Equal(t, 3, out.Len())
	assert.Equal(t, "tree", out.Findings[0].Message)
	assert.Equal(t, RuleAliasHandle, out.Findings[2].RuleCode)
	assert.Equal(t, 1, out.FilesAnalyzed)
	assert.Equal(t, 30, out.LinesAnalyzed)
	assert.Equal(t, 1, out.ErrorCount)
	assert.Equal(t, 1, out.WarningCount)
	assert.Equal(t, 1, out.InfoCount)

	seen := map[string]bool{}
	for _, f := range out.Findings {
		assert.False(t, seen[f.Key()], "duplicate key %s", f.Key())
		seen[f.Key()] = true
	}
}

func TestCombinePassesWithMissingPass(t *testing.T) {
	text := reportWith(1, 7, NewError("a.rs", RuleDirectConstruct, "text").At(2, 1))
	out := CombinePasses(nil, text)
	assert.Equal(t, 1, out.Len())
	assert.Equal(t, 7, out.LinesAnalyzed)
}

func TestReportFilterAndSort(t *testing.T) {
	r := reportWith(2, 40,
		NewInfo("b.rs", RuleAliasHandle, "i").At(1, 1),
		NewError("a.rs", RuleDirectConstruct, "e").At(9, 1),
		NewWarning("a.rs", RuleMissingSelfClone, "w").At(2, 3),
	)

	onlyErrors := r.Filter(func(f Finding) bool { return f.Severity >= SeverityError })
	assert.Equal(t, 1, onlyErrors.Len())
	assert.Equal(t, 0, onlyErrors.InfoCount)
	assert.Equal(t, 2, onlyErrors.FilesAnalyzed)
	assert.Equal(t, 40, onlyErrors.LinesAnalyzed)

	r.SortByLocation()
	assert.Equal(t, "a.rs", r.Findings[0].File)
	assert.Equal(t, 2, r.Findings[0].Line)
	assert.Equal(t, "b.rs", r.Findings[2].File)
}

func TestRuleCatalogue(t *testing.T) {
	codes := map[string]Severity{}
	for _, r := range Rules() {
		codes[r.Code] = r.Severity
		assert.NotEmpty(t, r.Description)
	}
	for _, code := range []string{
		RuleReadFailure, RuleDirectConstruct, RuleShadowedField, RuleMissingSelfClone,
		RuleAliasHandle, RuleHelperHandle, RuleMethodChain, RuleUnsafeRelaunder,
	} {
		_, ok := codes[code]
		assert.True(t, ok, code)
		info, found := LookupRule(code)
		assert.True(t, found)
		assert.Equal(t, code, info.Code)
	}
	assert.Equal(t, SeverityError, codes[RuleDirectConstruct])
	assert.Equal(t, SeverityError, codes[RuleUnsafeRelaunder])

	_, found := LookupRule("SS-404")
	assert.False(t, found)
}
