package detectors

import (
	"github.com/paiml/probar-sub002/internal/core"
)

// ConstructionKind 句柄构造模式
type ConstructionKind int

const (
	ConstructionNone ConstructionKind = iota
	// ConstructionDirect `Rc::new(..)` / `Rc::default()` / `Rc::from(..)` / `Rc::clone(&local)`
	ConstructionDirect
	// ConstructionRelaunder `Rc::from_raw(p)` / `Rc::increment_strong_count(p)` / `Weak::from_raw(p)`
	ConstructionRelaunder
	// ConstructionAlias `Alias::new(..)`，允许 `Alias::<T>::new(..)`
	ConstructionAlias
	// ConstructionHelper 调用返回句柄的辅助函数
	ConstructionHelper
	// ConstructionMethodChain `.to_rc()` 等，或克隆新建的局部句柄
	ConstructionMethodChain
	// ConstructionCloneFromSelf 从 self 字段克隆：正确写法，只登记不报告
	ConstructionCloneFromSelf
)

func (k ConstructionKind) String() string {
	switch k {
	case ConstructionDirect:
		return "direct"
	case ConstructionRelaunder:
		return "relaunder"
	case ConstructionAlias:
		return "alias"
	case ConstructionHelper:
		return "helper"
	case ConstructionMethodChain:
		return "method-chain"
	case ConstructionCloneFromSelf:
		return "clone-from-self"
	default:
		return "none"
	}
}

// RuleCode 对应的规则编号；不报告的模式返回空串
func (k ConstructionKind) RuleCode() string {
	switch k {
	case ConstructionDirect:
		return core.RuleDirectConstruct
	case ConstructionRelaunder:
		return core.RuleUnsafeRelaunder
	case ConstructionAlias:
		return core.RuleAliasHandle
	case ConstructionHelper:
		return core.RuleHelperHandle
	case ConstructionMethodChain:
		return core.RuleMethodChain
	}
	return ""
}

// Severity 闭包工厂内命中时的严重性
func (k ConstructionKind) Severity() core.Severity {
	switch k {
	case ConstructionDirect, ConstructionRelaunder:
		return core.SeverityError
	case ConstructionAlias, ConstructionHelper, ConstructionMethodChain:
		return core.SeverityWarning
	}
	return core.SeverityInfo
}

// Reportable 是否产生命中
func (k ConstructionKind) Reportable() bool {
	return k.RuleCode() != ""
}

// Origin 绑定变量的句柄来源
func (k ConstructionKind) Origin() HandleOrigin {
	if k == ConstructionCloneFromSelf {
		return OriginSelfClone
	}
	return OriginConstructed
}

// Matcher 构造模式匹配器
type Matcher struct {
	opts    core.Options
	symbols *core.SymbolTable
	locals  *ClosureContext
}

// NewMatcher 创建匹配器；locals 用于判断 `.clone()` 接收者是否为已追踪句柄
func NewMatcher(opts core.Options, symbols *core.SymbolTable, locals *ClosureContext) *Matcher {
	if symbols == nil {
		symbols = core.NewSymbolTable()
	}
	return &Matcher{opts: opts, symbols: symbols, locals: locals}
}

// Match 判断表达式（先剥离 block/unsafe 块）是否构造句柄
func (m *Matcher) Match(e core.Expr) ConstructionKind {
	switch n := core.Unwrap(e).(type) {
	case *core.CallExpr:
		return m.matchCall(n)
	case *core.MethodCallExpr:
		return m.matchMethodCall(n)
	}
	return ConstructionNone
}

func (m *Matcher) matchCall(call *core.CallExpr) ConstructionKind {
	path, ok := call.Callee.(*core.PathExpr)
	if !ok || len(path.Segments) == 0 {
		return ConstructionNone
	}
	segs := path.Segments
	fn := path.Last()

	if len(segs) == 1 {
		if m.symbols.IsHelper(fn) {
			return ConstructionHelper
		}
		return ConstructionNone
	}

	typ := segs[len(segs)-2]

	if (m.opts.IsHandleType(typ) || m.opts.IsWeakType(typ)) && m.opts.IsRelaunderOp(fn) {
		return ConstructionRelaunder
	}

	// 别名/辅助函数比通用的直接构造更具体，先判断
	if m.opts.IsConstructor(fn) && (m.symbols.IsAlias(typ) || m.symbols.IsAlias(path.First())) {
		return ConstructionAlias
	}
	if typ == "Self" && m.symbols.IsHelper(fn) {
		return ConstructionHelper
	}

	if m.opts.IsHandleType(typ) && m.opts.IsConstructor(fn) {
		if fn == "clone" && len(call.Args) > 0 && m.cloneSource(call.Args[0]) == OriginSelfClone {
			return ConstructionCloneFromSelf
		}
		return ConstructionDirect
	}
	return ConstructionNone
}

func (m *Matcher) matchMethodCall(call *core.MethodCallExpr) ConstructionKind {
	if m.opts.IsChainMethod(call.Method) {
		return ConstructionMethodChain
	}
	if call.Method == "clone" && len(call.Args) == 0 {
		if core.IsSelfField(call.Receiver) {
			return ConstructionCloneFromSelf
		}
		if name, ok := identOf(call.Receiver); ok && m.locals != nil {
			if h, tracked := m.locals.Handle(name); tracked {
				if h.Origin == OriginSelfClone {
					return ConstructionCloneFromSelf
				}
				return ConstructionMethodChain
			}
		}
		return ConstructionNone
	}
	if recv, ok := identOf(call.Receiver); ok && recv == "self" && m.symbols.IsHelper(call.Method) {
		return ConstructionHelper
	}
	return ConstructionNone
}

// cloneSource `Rc::clone(arg)` 的参数来源；未知来源视为新建
func (m *Matcher) cloneSource(arg core.Expr) HandleOrigin {
	if ref, ok := arg.(*core.RefExpr); ok {
		arg = ref.X
	}
	if core.IsSelfField(arg) {
		return OriginSelfClone
	}
	if name, ok := identOf(arg); ok && m.locals != nil {
		if h, tracked := m.locals.Handle(name); tracked {
			return h.Origin
		}
	}
	return OriginConstructed
}

func identOf(e core.Expr) (string, bool) {
	p, ok := e.(*core.PathExpr)
	if !ok {
		return "", false
	}
	return p.Ident()
}
