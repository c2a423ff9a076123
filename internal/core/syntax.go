package core

import "strings"

// 降级后的语法树：每类语言结构是一个封闭的和类型，检测器用 type switch 分派。

// Position 源码位置（1 基索引）
type Position struct {
	Line   int
	Column int
}

// Pos 返回位置
func (p Position) Pos() Position { return p }

// File 单个源文件的顶层条目
type File struct {
	Path  string
	Items []Item
}

// Item 顶层/嵌套条目
type Item interface {
	Pos() Position
	item()
}

// FuncItem 函数或方法；签名条目的 Body 为 nil
type FuncItem struct {
	Position
	Name       string
	ReturnType string
	Body       *BlockExpr
}

// TypeAliasItem 类型别名 `type Name<..> = Target;`
type TypeAliasItem struct {
	Position
	Name   string
	Target string
}

// ModItem 内联模块
type ModItem struct {
	Position
	Name  string
	Items []Item
}

// ImplItem impl 块
type ImplItem struct {
	Position
	SelfType string
	Items    []Item
}

// TraitItem trait 定义
type TraitItem struct {
	Position
	Name  string
	Items []Item
}

func (*FuncItem) item()      {}
func (*TypeAliasItem) item() {}
func (*ModItem) item()       {}
func (*ImplItem) item()      {}
func (*TraitItem) item()     {}

// Stmt 语句
type Stmt interface {
	Pos() Position
	stmt()
}

// LetStmt 局部变量声明；模式不是简单标识符时 Name 为空
type LetStmt struct {
	Position
	Name string
	Init Expr
}

// ExprStmt 表达式语句
type ExprStmt struct {
	Position
	X Expr
}

// ItemStmt 函数体内的条目
type ItemStmt struct {
	Position
	Item Item
}

func (*LetStmt) stmt()  {}
func (*ExprStmt) stmt() {}
func (*ItemStmt) stmt() {}

// Expr 表达式
type Expr interface {
	Pos() Position
	expr()
}

// CallExpr 函数调用 `callee(args)`
type CallExpr struct {
	Position
	Callee Expr
	Args   []Expr
}

// MethodCallExpr 方法调用 `receiver.method(args)`
type MethodCallExpr struct {
	Position
	Receiver Expr
	Method   string
	Args     []Expr
}

// PathExpr 路径或标识符，泛型参数已剥离
type PathExpr struct {
	Position
	Segments []string
}

// FieldExpr 字段访问 `receiver.field`
type FieldExpr struct {
	Position
	Receiver Expr
	Field    string
}

// ClosureExpr 闭包字面量
type ClosureExpr struct {
	Position
	Move bool
	Body Expr
}

// BlockExpr 代码块；Unsafe 标记 unsafe 块
type BlockExpr struct {
	Position
	Unsafe bool
	Stmts  []Stmt
	Tail   Expr
}

// RefExpr 引用 `&x` / `&mut x`
type RefExpr struct {
	Position
	X Expr
}

// MacroExpr 宏调用；宏参数不解析为表达式，只保留出现的标识符
type MacroExpr struct {
	Position
	Name   string
	Idents []string
}

// OtherExpr 未建模的表达式，只保留子表达式
type OtherExpr struct {
	Position
	Kind     string
	Children []Expr
}

func (*CallExpr) expr()       {}
func (*MethodCallExpr) expr() {}
func (*PathExpr) expr()       {}
func (*FieldExpr) expr()      {}
func (*ClosureExpr) expr()    {}
func (*BlockExpr) expr()      {}
func (*RefExpr) expr()        {}
func (*MacroExpr) expr()      {}
func (*OtherExpr) expr()      {}

// MaxUnwrapDepth Unwrap 的递归上限
const MaxUnwrapDepth = 64

// Unwrap 将 `{ ...; tail }` / `unsafe { tail }` 替换为尾表达式，递归进行
func Unwrap(e Expr) Expr {
	for i := 0; i < MaxUnwrapDepth; i++ {
		block, ok := e.(*BlockExpr)
		if !ok || block.Tail == nil {
			return e
		}
		e = block.Tail
	}
	return e
}

// Last 最后一段
func (p *PathExpr) Last() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// First 第一段
func (p *PathExpr) First() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[0]
}

// Ident 单段路径时返回标识符
func (p *PathExpr) Ident() (string, bool) {
	if len(p.Segments) != 1 {
		return "", false
	}
	return p.Segments[0], true
}

// IsSelfField 是否为 `self.<field>`（可经过多层字段）
func IsSelfField(e Expr) bool {
	f, ok := e.(*FieldExpr)
	if !ok {
		return false
	}
	switch recv := f.Receiver.(type) {
	case *PathExpr:
		name, ok := recv.Ident()
		return ok && name == "self"
	case *FieldExpr:
		return IsSelfField(recv)
	}
	return false
}

// Children 直接子表达式（块内语句中的表达式也算在内，不进入嵌套条目）
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *CallExpr:
		return append([]Expr{n.Callee}, n.Args...)
	case *MethodCallExpr:
		return append([]Expr{n.Receiver}, n.Args...)
	case *FieldExpr:
		return []Expr{n.Receiver}
	case *ClosureExpr:
		if n.Body == nil {
			return nil
		}
		return []Expr{n.Body}
	case *BlockExpr:
		var out []Expr
		for _, s := range n.Stmts {
			switch st := s.(type) {
			case *LetStmt:
				if st.Init != nil {
					out = append(out, st.Init)
				}
			case *ExprStmt:
				out = append(out, st.X)
			}
		}
		if n.Tail != nil {
			out = append(out, n.Tail)
		}
		return out
	case *RefExpr:
		return []Expr{n.X}
	case *OtherExpr:
		return n.Children
	}
	return nil
}

// Inspect 深度优先遍历表达式，f 返回 false 时不进入子节点
func Inspect(e Expr, f func(Expr) bool) {
	if e == nil || !f(e) {
		return
	}
	for _, c := range Children(e) {
		Inspect(c, f)
	}
}

// SplitPath 将路径文本拆成段，剥离泛型参数（含 turbofish）与空白
func SplitPath(text string) []string {
	stripped := StripGenerics(text)
	var segs []string
	for _, s := range strings.Split(stripped, "::") {
		s = strings.TrimSpace(s)
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// StripGenerics 删除所有配对的 `<...>`
func StripGenerics(text string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '<':
			depth++
		case c == '>' && depth > 0:
			depth--
		case depth == 0 && c != ' ' && c != '\t' && c != '\n' && c != '\r':
			b.WriteByte(c)
		}
	}
	return b.String()
}

// OuterTypeName 类型表达式最外层构造器名（去掉路径前缀与泛型参数）
func OuterTypeName(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '<'); i >= 0 {
		text = text[:i]
	}
	segs := SplitPath(text)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}
