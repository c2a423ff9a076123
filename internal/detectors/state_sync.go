package detectors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paiml/probar-sub002/internal/core"
)

// StateSyncDetector 语法树遍历（主分析）
// 检测闭包工厂函数中把新建的共享句柄交给闭包、而不是克隆 self 已持有的句柄
type StateSyncDetector struct {
	*core.BaseDetector
}

// NewStateSyncDetector 创建检测器
func NewStateSyncDetector() *StateSyncDetector {
	return &StateSyncDetector{
		BaseDetector: core.NewBaseDetector(
			"State Sync Detector",
			"Detects closures that receive a freshly constructed shared handle instead of a clone of the handle owned by self",
		),
	}
}

// Run 运行检测器。检测器本身无状态，每次调用使用独立的遍历上下文，可并发使用
func (d *StateSyncDetector) Run(ctx *core.AnalysisContext) (*core.Report, error) {
	report := d.NewFileReport(ctx)

	unit, err := core.ParseSource(ctx.Ctx, ctx.FilePath, ctx.Source)
	if err != nil {
		if errors.Is(err, core.ErrParseRejected) {
			ctx.Logger.Debug("tree pass skipped, parser rejected source", "file", ctx.FilePath)
		}
		return report, err
	}
	defer unit.Close()

	v := newTreeVisitor(d, ctx, report)
	v.visitFile(core.Lower(unit))

	return report, nil
}

// treeVisitor 单文件遍历状态
type treeVisitor struct {
	det      *StateSyncDetector
	ctx      *core.AnalysisContext
	report   *core.Report
	symbols  *core.SymbolTable
	closures *ClosureContext
	matcher  *Matcher
}

func newTreeVisitor(d *StateSyncDetector, ctx *core.AnalysisContext, report *core.Report) *treeVisitor {
	return &treeVisitor{
		det:      d,
		ctx:      ctx,
		report:   report,
		closures: NewClosureContext(ctx.Options),
	}
}

func (v *treeVisitor) visitFile(file *core.File) {
	// 符号预扫描先于任何函数体
	collector := NewSymbolCollector(v.ctx.Options)
	for _, f := range collector.Collect(file) {
		v.report.Add(f)
	}
	v.symbols = collector.Table()
	v.matcher = NewMatcher(v.ctx.Options, v.symbols, v.closures)

	v.visitItems(file.Items)
}

func (v *treeVisitor) visitItems(items []core.Item) {
	for _, it := range items {
		switch n := it.(type) {
		case *core.FuncItem:
			v.visitFunc(n)
		case *core.ModItem:
			v.visitItems(n.Items)
		case *core.ImplItem:
			v.visitItems(n.Items)
		case *core.TraitItem:
			v.visitItems(n.Items)
		case *core.TypeAliasItem:
			// 已由 SymbolCollector 处理
		}
	}
}

func (v *treeVisitor) visitFunc(fn *core.FuncItem) {
	if fn.Body == nil {
		return
	}
	saved := v.closures.Enter(fn.Name)
	if v.ctx.Options.ClosurePrescan && !v.closures.CreatesClosures() && v.containsClosure(fn.Body) {
		v.closures.MarkClosure()
	}

	v.visitBlock(fn.Body)
	v.checkShadowedFields()

	v.closures.Exit(saved)
}

func (v *treeVisitor) visitBlock(b *core.BlockExpr) {
	for _, s := range b.Stmts {
		switch st := s.(type) {
		case *core.LetStmt:
			v.visitLet(st)
		case *core.ExprStmt:
			v.visitExpr(st.X)
		case *core.ItemStmt:
			v.visitItems([]core.Item{st.Item})
		}
	}
	if b.Tail != nil {
		v.visitExpr(b.Tail)
	}
}

func (v *treeVisitor) visitLet(st *core.LetStmt) {
	if st.Init == nil {
		return
	}
	v.visitExpr(st.Init)

	kind := v.matcher.Match(st.Init)
	if kind == ConstructionNone {
		v.closures.Forget(st.Name)
		return
	}
	v.closures.TrackHandle(st.Name, kind.Origin(), st.Pos())

	if !kind.Reportable() || !v.closures.CreatesClosures() {
		return
	}
	v.report.Add(v.det.CreateFinding(v.ctx, kind.Severity(), kind.RuleCode(),
		constructionMessage(kind, st.Name, v.closures.FunctionName()), st.Pos()).
		WithSuggestion(cloneSuggestion(st.Name)))
}

func (v *treeVisitor) visitExpr(e core.Expr) {
	switch n := e.(type) {
	case nil:
		return
	case *core.ClosureExpr:
		v.closures.MarkClosure()
		v.checkCaptures(n)
		v.visitExpr(n.Body)
	case *core.CallExpr:
		if v.isClosureConstructor(n) {
			v.closures.MarkClosure()
		}
		v.visitExpr(n.Callee)
		for _, a := range n.Args {
			v.visitExpr(a)
		}
	case *core.MethodCallExpr:
		v.visitExpr(n.Receiver)
		for _, a := range n.Args {
			v.visitExpr(a)
		}
	case *core.FieldExpr:
		if recv, ok := identOf(n.Receiver); ok && recv == "self" {
			v.closures.NoteSelfField(n.Field)
		}
		v.visitExpr(n.Receiver)
	case *core.BlockExpr:
		v.visitBlock(n)
	case *core.RefExpr:
		v.visitExpr(n.X)
	case *core.OtherExpr:
		for _, c := range n.Children {
			v.visitExpr(c)
		}
	case *core.PathExpr, *core.MacroExpr:
	}
}

// isClosureConstructor `Closure::wrap(..)` 这类具名闭包构造调用
func (v *treeVisitor) isClosureConstructor(call *core.CallExpr) bool {
	path, ok := call.Callee.(*core.PathExpr)
	if !ok || len(path.Segments) == 0 {
		return false
	}
	if len(path.Segments) >= 2 && v.ctx.Options.IsClosureType(path.Segments[len(path.Segments)-2]) {
		return true
	}
	return v.ctx.Options.IsClosureFunction(path.Last())
}

// containsClosure 浅扫描函数体（不进入嵌套条目）
func (v *treeVisitor) containsClosure(body *core.BlockExpr) bool {
	found := false
	core.Inspect(body, func(e core.Expr) bool {
		if found {
			return false
		}
		switch n := e.(type) {
		case *core.ClosureExpr:
			found = true
		case *core.CallExpr:
			found = v.isClosureConstructor(n)
		}
		return !found
	})
	return found
}

// checkCaptures SS-005：闭包捕获了函数内新建的句柄
func (v *treeVisitor) checkCaptures(closure *core.ClosureExpr) {
	if !v.closures.CreatesClosures() || closure.Body == nil {
		return
	}
	var captured []string
	seen := make(map[string]bool)
	note := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if h, ok := v.closures.Handle(name); ok && h.Origin == OriginConstructed {
			captured = append(captured, name)
		}
	}
	core.Inspect(closure.Body, func(e core.Expr) bool {
		switch n := e.(type) {
		case *core.PathExpr:
			if name, ok := n.Ident(); ok {
				note(name)
			}
		case *core.MacroExpr:
			for _, id := range n.Idents {
				note(id)
			}
		}
		return true
	})
	if len(captured) == 0 {
		return
	}
	msg := fmt.Sprintf("closure in `%s` captures locally constructed handle %s instead of a clone of the field owned by self",
		v.closures.FunctionName(), quoteNames(captured))
	v.report.Add(v.det.CreateFinding(v.ctx, core.SeverityWarning, core.RuleMissingSelfClone, msg, closure.Pos()).
		WithSuggestion(cloneSuggestion(captured[0])))
}

// checkShadowedFields SS-002：新建的局部句柄与同函数内访问的 self 字段同名
func (v *treeVisitor) checkShadowedFields() {
	if !v.closures.CreatesClosures() {
		return
	}
	for _, h := range v.closures.Handles() {
		if h.Origin != OriginConstructed || !v.closures.UsesSelfField(h.Name) {
			continue
		}
		msg := fmt.Sprintf("local `%s` in `%s` is a new handle while `self.%s` is also used; closures observe the local copy, not the field",
			h.Name, v.closures.FunctionName(), h.Name)
		v.report.Add(v.det.CreateFinding(v.ctx, core.SeverityWarning, core.RuleShadowedField, msg, h.Pos).
			WithSuggestion(cloneSuggestion(h.Name)))
	}
}

func constructionMessage(kind ConstructionKind, name, function string) string {
	if name == "" {
		name = "<pattern>"
	}
	switch kind {
	case ConstructionDirect:
		return fmt.Sprintf("`%s` is a freshly constructed shared handle in closure factory `%s`; closures will mutate state disconnected from self", name, function)
	case ConstructionRelaunder:
		return fmt.Sprintf("`%s` is reconstructed from a raw pointer in closure factory `%s`; the handle's origin is hidden", name, function)
	case ConstructionAlias:
		return fmt.Sprintf("`%s` is constructed through a type alias of a shared handle in closure factory `%s`", name, function)
	case ConstructionHelper:
		return fmt.Sprintf("`%s` comes from a helper that returns a new shared handle in closure factory `%s`", name, function)
	case ConstructionMethodChain:
		return fmt.Sprintf("`%s` is produced by a method chain that does not clone a self field in closure factory `%s`", name, function)
	}
	return fmt.Sprintf("`%s` holds a shared handle", name)
}

func cloneSuggestion(name string) string {
	if name == "" {
		name = "field"
	}
	return fmt.Sprintf("let %s_clone = self.%s.clone();", name, name)
}

func quoteNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}
