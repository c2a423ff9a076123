package core

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// MaxLowerDepth 降级递归上限，超过后的子树按未建模表达式处理
const MaxLowerDepth = 512

// lowerer 将 tree-sitter 节点降级为和类型
type lowerer struct {
	source []byte
}

// Lower 将已解析单元降级为 File
func Lower(unit *ParsedUnit) *File {
	l := &lowerer{source: unit.Source}
	return &File{
		Path:  unit.FilePath,
		Items: l.items(unit.Root, 0),
	}
}

func (l *lowerer) text(n *sitter.Node) string {
	return NodeText(l.source, n)
}

func pos(n *sitter.Node) Position {
	line, col := NodePosition(n)
	return Position{Line: line, Column: col}
}

func isComment(n *sitter.Node) bool {
	switch n.Type() {
	case "line_comment", "block_comment", "attribute_item", "inner_attribute_item":
		return true
	}
	return false
}

// items 降级 source_file / declaration_list 的子条目
func (l *lowerer) items(parent *sitter.Node, depth int) []Item {
	var out []Item
	for _, child := range SafeNamedChildren(parent) {
		if it := l.item(child, depth+1); it != nil {
			out = append(out, it)
		}
	}
	return out
}

func (l *lowerer) item(n *sitter.Node, depth int) Item {
	if depth > MaxLowerDepth {
		return nil
	}
	switch n.Type() {
	case "function_item", "function_signature_item":
		fn := &FuncItem{
			Position: pos(n),
			Name:     l.text(n.ChildByFieldName("name")),
		}
		if rt := n.ChildByFieldName("return_type"); rt != nil {
			fn.ReturnType = l.text(rt)
		}
		if body := n.ChildByFieldName("body"); body != nil {
			fn.Body = l.block(body, false, depth+1)
		}
		return fn
	case "type_item":
		return &TypeAliasItem{
			Position: pos(n),
			Name:     l.text(n.ChildByFieldName("name")),
			Target:   l.text(n.ChildByFieldName("type")),
		}
	case "mod_item":
		return &ModItem{
			Position: pos(n),
			Name:     l.text(n.ChildByFieldName("name")),
			Items:    l.items(n.ChildByFieldName("body"), depth),
		}
	case "impl_item":
		return &ImplItem{
			Position: pos(n),
			SelfType: l.text(n.ChildByFieldName("type")),
			Items:    l.items(n.ChildByFieldName("body"), depth),
		}
	case "trait_item":
		return &TraitItem{
			Position: pos(n),
			Name:     l.text(n.ChildByFieldName("name")),
			Items:    l.items(n.ChildByFieldName("body"), depth),
		}
	}
	return nil
}

// block 降级 block 节点；最后一个不带分号的表达式成为 Tail
func (l *lowerer) block(n *sitter.Node, unsafe bool, depth int) *BlockExpr {
	b := &BlockExpr{Position: pos(n), Unsafe: unsafe}
	if depth > MaxLowerDepth {
		return b
	}
	children := SafeNamedChildren(n)
	for i, child := range children {
		if isComment(child) {
			continue
		}
		switch child.Type() {
		case "let_declaration":
			b.Stmts = append(b.Stmts, l.let(child, depth+1))
		case "expression_statement":
			inner := child.NamedChild(0)
			if inner == nil {
				continue
			}
			b.Stmts = append(b.Stmts, &ExprStmt{Position: pos(child), X: l.expr(inner, depth+1)})
		case "empty_statement", "label":
		case "function_item", "function_signature_item", "type_item", "mod_item", "impl_item", "trait_item":
			if it := l.item(child, depth+1); it != nil {
				b.Stmts = append(b.Stmts, &ItemStmt{Position: pos(child), Item: it})
			}
		default:
			if isItemKind(child.Type()) {
				continue
			}
			e := l.expr(child, depth+1)
			if i == lastExprIndex(children) {
				b.Tail = e
			} else {
				b.Stmts = append(b.Stmts, &ExprStmt{Position: pos(child), X: e})
			}
		}
	}
	return b
}

// lastExprIndex 最后一个非注释子节点的下标
func lastExprIndex(children []*sitter.Node) int {
	for i := len(children) - 1; i >= 0; i-- {
		if !isComment(children[i]) {
			return i
		}
	}
	return -1
}

func isItemKind(kind string) bool {
	switch kind {
	case "struct_item", "enum_item", "union_item", "use_declaration", "const_item",
		"static_item", "macro_definition", "extern_crate_declaration", "foreign_mod_item",
		"associated_type":
		return true
	}
	return false
}

func (l *lowerer) let(n *sitter.Node, depth int) *LetStmt {
	st := &LetStmt{Position: pos(n)}
	if pat := n.ChildByFieldName("pattern"); pat != nil && pat.Type() == "identifier" {
		st.Name = l.text(pat)
	}
	if value := n.ChildByFieldName("value"); value != nil {
		st.Init = l.expr(value, depth+1)
	}
	return st
}

func (l *lowerer) exprs(nodes []*sitter.Node, depth int) []Expr {
	var out []Expr
	for _, n := range nodes {
		if isComment(n) {
			continue
		}
		out = append(out, l.expr(n, depth+1))
	}
	return out
}

func (l *lowerer) expr(n *sitter.Node, depth int) Expr {
	if n == nil {
		return &OtherExpr{Kind: "missing"}
	}
	if depth > MaxLowerDepth {
		return &OtherExpr{Position: pos(n), Kind: "truncated"}
	}
	switch n.Type() {
	case "call_expression":
		return l.call(n, depth)
	case "identifier", "self", "scoped_identifier", "generic_function", "crate", "super", "metavariable":
		return &PathExpr{Position: pos(n), Segments: SplitPath(l.text(n))}
	case "field_expression":
		return &FieldExpr{
			Position: pos(n),
			Receiver: l.expr(n.ChildByFieldName("value"), depth+1),
			Field:    l.text(n.ChildByFieldName("field")),
		}
	case "closure_expression":
		c := &ClosureExpr{Position: pos(n)}
		for _, child := range SafeChildren(n) {
			if child.Type() == "move" {
				c.Move = true
			}
		}
		if body := n.ChildByFieldName("body"); body != nil {
			c.Body = l.expr(body, depth+1)
		}
		return c
	case "block":
		return l.block(n, false, depth+1)
	case "unsafe_block", "async_block", "const_block":
		for _, child := range SafeNamedChildren(n) {
			if child.Type() == "block" {
				return l.block(child, n.Type() == "unsafe_block", depth+1)
			}
		}
	case "reference_expression":
		return &RefExpr{Position: pos(n), X: l.expr(n.ChildByFieldName("value"), depth+1)}
	case "parenthesized_expression":
		if inner := n.NamedChild(0); inner != nil {
			return l.expr(inner, depth+1)
		}
	case "macro_invocation":
		return &MacroExpr{
			Position: pos(n),
			Name:     l.text(n.ChildByFieldName("macro")),
			Idents:   l.tokenIdents(n, depth+1),
		}
	}
	return &OtherExpr{
		Position: pos(n),
		Kind:     n.Type(),
		Children: l.exprs(SafeNamedChildren(n), depth),
	}
}

// call 区分方法调用与普通调用（含 `x.m::<T>()`）
func (l *lowerer) call(n *sitter.Node, depth int) Expr {
	fn := n.ChildByFieldName("function")
	args := l.exprs(SafeNamedChildren(n.ChildByFieldName("arguments")), depth)

	target := fn
	if target != nil && target.Type() == "generic_function" {
		if inner := target.ChildByFieldName("function"); inner != nil && inner.Type() == "field_expression" {
			target = inner
		}
	}
	if target != nil && target.Type() == "field_expression" {
		return &MethodCallExpr{
			Position: pos(n),
			Receiver: l.expr(target.ChildByFieldName("value"), depth+1),
			Method:   l.text(target.ChildByFieldName("field")),
			Args:     args,
		}
	}
	var callee Expr = &OtherExpr{Position: pos(n), Kind: "missing"}
	if fn != nil {
		callee = l.expr(fn, depth+1)
	}
	return &CallExpr{Position: pos(n), Callee: callee, Args: args}
}

// tokenIdents 收集宏 token_tree 中的标识符
func (l *lowerer) tokenIdents(n *sitter.Node, depth int) []string {
	var out []string
	var walk func(node *sitter.Node, d int)
	walk = func(node *sitter.Node, d int) {
		if node == nil || d > MaxLowerDepth {
			return
		}
		for _, child := range SafeNamedChildren(node) {
			switch child.Type() {
			case "identifier", "self":
				out = append(out, l.text(child))
			case "token_tree":
				walk(child, d+1)
			}
		}
	}
	for _, child := range SafeNamedChildren(n) {
		if child.Type() == "token_tree" {
			walk(child, depth)
		}
	}
	return out
}
