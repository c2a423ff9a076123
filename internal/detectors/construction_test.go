package detectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiml/probar-sub002/internal/core"
)

func lowerFile(t *testing.T, src string) *core.File {
	t.Helper()
	unit, err := core.ParseSource(context.Background(), "lib.rs", []byte(src))
	require.NoError(t, err)
	t.Cleanup(unit.Close)
	return core.Lower(unit)
}

// letInit 取出 `let x = <expr>;` 的初始化表达式
func letInit(t *testing.T, expr string) core.Expr {
	t.Helper()
	file := lowerFile(t, "fn f() {\n    let x = "+expr+";\n}\n")
	require.Len(t, file.Items, 1)
	fn, ok := file.Items[0].(*core.FuncItem)
	require.True(t, ok)
	require.NotNil(t, fn.Body)
	require.NotEmpty(t, fn.Body.Stmts)
	let, ok := fn.Body.Stmts[0].(*core.LetStmt)
	require.True(t, ok)
	return let.Init
}

func TestMatcherKinds(t *testing.T) {
	opts := core.DefaultOptions()
	symbols := core.NewSymbolTable()
	symbols.AddSymbol(&core.Symbol{Name: "Shared", Type: core.SymbolAlias})
	symbols.AddSymbol(&core.Symbol{Name: "make_state", Type: core.SymbolHelper})

	locals := NewClosureContext(opts)
	locals.Enter("spawn")
	locals.TrackHandle("fresh", OriginConstructed, core.Position{Line: 1, Column: 1})
	locals.TrackHandle("copied", OriginSelfClone, core.Position{Line: 2, Column: 1})

	m := NewMatcher(opts, symbols, locals)

	tests := []struct {
		expr string
		want ConstructionKind
	}{
		{"Rc::new(Cell::new(0))", ConstructionDirect},
		{"Rc::default()", ConstructionDirect},
		{"std::rc::Rc::from(value)", ConstructionDirect},
		{"Rc::<RefCell<Vec<u8>>>::new(RefCell::new(vec![]))", ConstructionDirect},
		{"Rc::clone(&fresh)", ConstructionDirect},
		{"Rc::clone(&unknown)", ConstructionDirect},
		{"Rc::clone(&self.state)", ConstructionCloneFromSelf},
		{"Rc::clone(&copied)", ConstructionCloneFromSelf},
		{"unsafe { Rc::from_raw(ptr) }", ConstructionRelaunder},
		{"unsafe { Rc::increment_strong_count(ptr) }", ConstructionRelaunder},
		{"unsafe { Weak::from_raw(ptr) }", ConstructionRelaunder},
		{"Shared::new(RefCell::new(0))", ConstructionAlias},
		{"Shared::<u8>::default()", ConstructionAlias},
		{"make_state()", ConstructionHelper},
		{"Self::make_state()", ConstructionHelper},
		{"self.make_state()", ConstructionHelper},
		{"value.to_rc()", ConstructionMethodChain},
		{"fresh.clone()", ConstructionMethodChain},
		{"self.state.clone()", ConstructionCloneFromSelf},
		{"self.inner.state.clone()", ConstructionCloneFromSelf},
		{"copied.clone()", ConstructionCloneFromSelf},
		{"other.clone()", ConstructionNone},
		{"Rc::into_raw(fresh)", ConstructionNone},
		{"Arc::new(0)", ConstructionNone},
		{"Vec::new()", ConstructionNone},
		{"compute(1, 2)", ConstructionNone},
		{"42", ConstructionNone},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := m.Match(letInit(t, tt.expr))
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestMatcherCustomHandleTypes(t *testing.T) {
	opts := core.DefaultOptions()
	opts.HandleTypes = append(opts.HandleTypes, "Arc")
	m := NewMatcher(opts, nil, nil)

	assert.Equal(t, ConstructionDirect, m.Match(letInit(t, "Arc::new(Mutex::new(0))")))
	assert.Equal(t, ConstructionRelaunder, m.Match(letInit(t, "unsafe { Arc::from_raw(p) }")))
	assert.Equal(t, ConstructionNone, m.Match(letInit(t, "local.clone()")))
}

func TestConstructionKindMapping(t *testing.T) {
	tests := []struct {
		kind       ConstructionKind
		code       string
		severity   core.Severity
		origin     HandleOrigin
		reportable bool
	}{
		{ConstructionDirect, core.RuleDirectConstruct, core.SeverityError, OriginConstructed, true},
		{ConstructionRelaunder, core.RuleUnsafeRelaunder, core.SeverityError, OriginConstructed, true},
		{ConstructionAlias, core.RuleAliasHandle, core.SeverityWarning, OriginConstructed, true},
		{ConstructionHelper, core.RuleHelperHandle, core.SeverityWarning, OriginConstructed, true},
		{ConstructionMethodChain, core.RuleMethodChain, core.SeverityWarning, OriginConstructed, true},
		{ConstructionCloneFromSelf, "", core.SeverityInfo, OriginSelfClone, false},
		{ConstructionNone, "", core.SeverityInfo, OriginConstructed, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.kind.RuleCode())
			assert.Equal(t, tt.severity, tt.kind.Severity())
			assert.Equal(t, tt.origin, tt.kind.Origin())
			assert.Equal(t, tt.reportable, tt.kind.Reportable())
		})
	}
}

func TestClosureContext(t *testing.T) {
	c := NewClosureContext(core.DefaultOptions())
	assert.False(t, c.InFunction())

	// 函数体外的闭包不升级
	c.MarkClosure()
	assert.False(t, c.CreatesClosures())

	outer := c.Enter("compute")
	assert.True(t, c.InFunction())
	assert.False(t, c.CreatesClosures())
	c.TrackHandle("a", OriginConstructed, core.Position{Line: 3, Column: 5})
	c.TrackHandle("b", OriginSelfClone, core.Position{Line: 4, Column: 5})
	c.TrackHandle("", OriginConstructed, core.Position{})
	c.NoteSelfField("a")

	inner := c.Enter("on_event")
	assert.True(t, c.CreatesClosures())
	_, ok := c.Handle("a")
	assert.False(t, ok)
	c.Exit(inner)

	assert.Equal(t, "compute", c.FunctionName())
	assert.False(t, c.CreatesClosures())
	c.MarkClosure()
	assert.True(t, c.CreatesClosures())
	assert.True(t, c.UsesSelfField("a"))
	assert.False(t, c.UsesSelfField("b"))

	handles := c.Handles()
	require.Len(t, handles, 2)
	assert.Equal(t, "a", handles[0].Name)
	assert.Equal(t, "b", handles[1].Name)

	// 重新绑定保持首次登记顺序
	c.TrackHandle("a", OriginSelfClone, core.Position{Line: 9, Column: 5})
	c.Forget("b")
	handles = c.Handles()
	require.Len(t, handles, 1)
	assert.Equal(t, OriginSelfClone, handles[0].Origin)
	assert.Equal(t, 9, handles[0].Pos.Line)

	c.Exit(outer)
	assert.False(t, c.InFunction())
}

func TestEntryPointNames(t *testing.T) {
	c := NewClosureContext(core.DefaultOptions())
	for _, name := range []string{"spawn", "start_timer", "register_handler", "on_click", "setup", "init_state", "add_callback", "SubscribeAll"} {
		assert.True(t, c.IsEntryPointName(name), name)
	}
	for _, name := range []string{"compute", "render", "new", "drop", "onclick"} {
		assert.False(t, c.IsEntryPointName(name), name)
	}
}
