package detectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paiml/probar-sub002/internal/core"
)

func newContext(src string, mutate ...func(*core.Options)) *core.AnalysisContext {
	opts := core.DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	return core.NewAnalysisContext(context.Background(), "lib.rs", []byte(src), opts)
}

func runDetector(t *testing.T, d core.Detector, src string, mutate ...func(*core.Options)) *core.Report {
	t.Helper()
	rep, err := d.Run(newContext(src, mutate...))
	require.NoError(t, err)
	require.NotNil(t, rep)
	return rep
}

func findingsFor(rep *core.Report, code string) []core.Finding {
	var out []core.Finding
	for _, f := range rep.Findings {
		if f.RuleCode == code {
			out = append(out, f)
		}
	}
	return out
}

func linesFor(rep *core.Report, code string) []int {
	var out []int
	for _, f := range findingsFor(rep, code) {
		out = append(out, f.Line)
	}
	return out
}

func withoutPrescan(o *core.Options) {
	o.ClosurePrescan = false
}
