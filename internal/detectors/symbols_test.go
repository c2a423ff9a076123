package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiml/probar-sub002/internal/core"
)

func TestSymbolCollector(t *testing.T) {
	file := lowerFile(t, `type Deep<T> = Outer<T>;
type Outer<T> = Inner<T>;
type Inner<T> = std::rc::Rc<RefCell<T>>;
type Plain = Vec<u8>;

mod state {
    pub fn make() -> Rc<Cell<i32>> {
        Rc::new(Cell::new(0))
    }
    pub fn wrapped() -> Outer<i32> {
        Outer::new(RefCell::new(0))
    }
}

fn count() -> usize {
    fn hidden() -> Rc<u8> { Rc::new(0) }
    0
}
`)
	c := NewSymbolCollector(core.DefaultOptions())
	findings := c.Collect(file)
	table := c.Table()

	assert.True(t, table.IsAlias("Inner"))
	assert.True(t, table.IsAlias("Outer"))
	assert.False(t, table.IsAlias("Deep"), "only one level of alias indirection is resolved")
	assert.False(t, table.IsAlias("Plain"))
	assert.True(t, table.IsHelper("make"))
	assert.True(t, table.IsHelper("wrapped"))
	assert.False(t, table.IsHelper("count"))
	assert.False(t, table.IsHelper("hidden"))

	require.Len(t, findings, 4)
	lines := make([]int, len(findings))
	for i, f := range findings {
		lines[i] = f.Line
		assert.Equal(t, core.SeverityInfo, f.Severity)
		assert.Equal(t, "lib.rs", f.File)
	}
	assert.Equal(t, []int{2, 3, 7, 10}, lines)
	assert.Equal(t, core.RuleAliasHandle, findings[0].RuleCode)
	assert.Contains(t, findings[0].Message, "`Outer`")
	assert.Equal(t, core.RuleHelperHandle, findings[2].RuleCode)
	assert.Contains(t, findings[2].Message, "`make`")
}

func TestSymbolCollectorFirstDeclarationWins(t *testing.T) {
	file := lowerFile(t, `mod a {
    pub fn make() -> Rc<u8> { Rc::new(0) }
}
mod b {
    pub fn make() -> Rc<u8> { Rc::new(1) }
}
`)
	c := NewSymbolCollector(core.DefaultOptions())
	findings := c.Collect(file)
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].Line)
}
