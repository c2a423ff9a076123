package core

import "sort"

// SymbolType 符号类型
type SymbolType int

const (
	// SymbolAlias 解析到句柄类型的类型别名
	SymbolAlias SymbolType = iota
	// SymbolHelper 返回句柄类型的函数/方法
	SymbolHelper
)

func (t SymbolType) String() string {
	if t == SymbolHelper {
		return "helper"
	}
	return "alias"
}

// Symbol 符号信息
type Symbol struct {
	Name      string     `json:"name"`
	Type      SymbolType `json:"type"`
	Line      int        `json:"line"`
	Column    int        `json:"column"`
	Signature string     `json:"signature"`
}

// SymbolTable 单文件符号表（别名表 + 辅助函数表）
// 只在一个文件的一遍分析内存活，不跨文件共享，因此无需加锁
type SymbolTable struct {
	aliases map[string]*Symbol
	helpers map[string]*Symbol
}

// NewSymbolTable 创建新的符号表
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		aliases: make(map[string]*Symbol),
		helpers: make(map[string]*Symbol),
	}
}

// AddSymbol 添加符号，重复名称保留首次声明；返回是否为新符号
func (st *SymbolTable) AddSymbol(symbol *Symbol) bool {
	table := st.aliases
	if symbol.Type == SymbolHelper {
		table = st.helpers
	}
	if _, exists := table[symbol.Name]; exists {
		return false
	}
	table[symbol.Name] = symbol
	return true
}

// IsAlias 是否为已知别名
func (st *SymbolTable) IsAlias(name string) bool {
	_, ok := st.aliases[name]
	return ok
}

// IsHelper 是否为已知辅助函数
func (st *SymbolTable) IsHelper(name string) bool {
	_, ok := st.helpers[name]
	return ok
}

// Aliases 别名名称（排序）
func (st *SymbolTable) Aliases() []string {
	return sortedKeys(st.aliases)
}

// Helpers 辅助函数名称（排序）
func (st *SymbolTable) Helpers() []string {
	return sortedKeys(st.helpers)
}

// Len 符号总数
func (st *SymbolTable) Len() int {
	return len(st.aliases) + len(st.helpers)
}

func sortedKeys(m map[string]*Symbol) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
