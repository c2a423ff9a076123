package detectors

import (
	"fmt"
	"sort"

	"github.com/paiml/probar-sub002/internal/core"
)

// SymbolCollector 顶层条目预扫描：收集别名表与辅助函数表
// 必须在遍历任何函数体之前完成，保证声明顺序不影响检测
type SymbolCollector struct {
	opts  core.Options
	table *core.SymbolTable
}

// NewSymbolCollector 创建收集器
func NewSymbolCollector(opts core.Options) *SymbolCollector {
	return &SymbolCollector{
		opts:  opts,
		table: core.NewSymbolTable(),
	}
}

// Table 返回收集到的符号表
func (c *SymbolCollector) Table() *core.SymbolTable {
	return c.table
}

// isHandleTypeName 最外层构造器是否为句柄类型或已知别名
func (c *SymbolCollector) isHandleTypeName(name string) bool {
	return c.opts.IsHandleType(name) || c.table.IsAlias(name)
}

// Collect 处理一个文件的条目，返回声明期 Info 命中（按源码顺序）
func (c *SymbolCollector) Collect(file *core.File) []core.Finding {
	var aliases []*core.TypeAliasItem
	var funcs []*core.FuncItem
	flattenItems(file.Items, &aliases, &funcs)

	var found []*core.Symbol

	// 第一轮：直接包装句柄类型的别名
	// 第二轮：包装第一轮别名的别名（只解析一层间接）
	pending := aliases
	for round := 0; round < 2 && len(pending) > 0; round++ {
		var next []*core.TypeAliasItem
		for _, a := range pending {
			if a.Name == "" || !c.isHandleTypeName(core.OuterTypeName(a.Target)) {
				next = append(next, a)
				continue
			}
			sym := &core.Symbol{
				Name:      a.Name,
				Type:      core.SymbolAlias,
				Line:      a.Line,
				Column:    a.Column,
				Signature: a.Target,
			}
			if c.table.AddSymbol(sym) {
				found = append(found, sym)
			}
		}
		pending = next
	}

	for _, fn := range funcs {
		if fn.Name == "" || fn.ReturnType == "" {
			continue
		}
		if !c.isHandleTypeName(core.OuterTypeName(fn.ReturnType)) {
			continue
		}
		sym := &core.Symbol{
			Name:      fn.Name,
			Type:      core.SymbolHelper,
			Line:      fn.Line,
			Column:    fn.Column,
			Signature: fn.ReturnType,
		}
		if c.table.AddSymbol(sym) {
			found = append(found, sym)
		}
	}

	sortSymbolsByPosition(found)
	findings := make([]core.Finding, 0, len(found))
	for _, sym := range found {
		findings = append(findings, symbolFinding(file.Path, sym))
	}
	return findings
}

// symbolFinding 声明期 Info 命中，两遍分析共用
func symbolFinding(path string, sym *core.Symbol) core.Finding {
	if sym.Type == core.SymbolHelper {
		return core.NewInfo(path, core.RuleHelperHandle,
			fmt.Sprintf("function `%s` returns shared handle type `%s`", sym.Name, sym.Signature)).
			At(sym.Line, sym.Column)
	}
	return core.NewInfo(path, core.RuleAliasHandle,
		fmt.Sprintf("type alias `%s` wraps shared handle type `%s`", sym.Name, sym.Signature)).
		At(sym.Line, sym.Column)
}

// flattenItems 展开 mod/impl/trait 中的条目；函数体内的条目不属于顶层
func flattenItems(items []core.Item, aliases *[]*core.TypeAliasItem, funcs *[]*core.FuncItem) {
	for _, it := range items {
		switch n := it.(type) {
		case *core.TypeAliasItem:
			*aliases = append(*aliases, n)
		case *core.FuncItem:
			*funcs = append(*funcs, n)
		case *core.ModItem:
			flattenItems(n.Items, aliases, funcs)
		case *core.ImplItem:
			flattenItems(n.Items, aliases, funcs)
		case *core.TraitItem:
			flattenItems(n.Items, aliases, funcs)
		}
	}
}

func sortSymbolsByPosition(syms []*core.Symbol) {
	sort.SliceStable(syms, func(i, j int) bool {
		if syms[i].Line != syms[j].Line {
			return syms[i].Line < syms[j].Line
		}
		return syms[i].Column < syms[j].Column
	})
}
