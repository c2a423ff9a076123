package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// ErrParseRejected 语法树包含错误节点，树遍历不可信，交给文本扫描
var ErrParseRejected = errors.New("source rejected by parser")

// ParserPool 管理 tree-sitter Parser 实例池
// 使用 sync.Pool 允许每个 goroutine 获取独立的 Parser，消除全局锁
type ParserPool struct {
	rustPool sync.Pool
}

// NewParserPool 创建新的 Parser Pool
func NewParserPool() *ParserPool {
	return &ParserPool{
		rustPool: sync.Pool{
			New: func() interface{} {
				parser := sitter.NewParser()
				parser.SetLanguage(rust.GetLanguage())
				return parser
			},
		},
	}
}

// globalParserPool 全局 Parser Pool 实例
var globalParserPool = NewParserPool()

// GetParser 从 Pool 获取 Parser（无需锁）
func GetParser() *sitter.Parser {
	return globalParserPool.rustPool.Get().(*sitter.Parser)
}

// PutParser 将 Parser 归还到 Pool
func PutParser(parser *sitter.Parser) {
	parser.Reset()
	globalParserPool.rustPool.Put(parser)
}

// ParsedUnit 表示一个已解析的代码单元
type ParsedUnit struct {
	FilePath string
	Source   []byte
	Tree     *sitter.Tree
	Root     *sitter.Node
}

// Close 释放 tree-sitter 树
func (u *ParsedUnit) Close() {
	if u != nil && u.Tree != nil {
		u.Tree.Close()
		u.Tree = nil
		u.Root = nil
	}
}

// IsSourceFile 根据扩展名判断是否为受支持的源文件
func IsSourceFile(filename string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseSource 解析内存中的源代码（引擎从不自行打开文件）
// 语法树含有错误节点时返回 ErrParseRejected
func ParseSource(ctx context.Context, filePath string, source []byte) (*ParsedUnit, error) {
	parser := GetParser()
	defer PutParser(parser)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filePath, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filePath, ErrParseRejected)
	}

	root := tree.RootNode()
	if root == nil || root.HasError() {
		tree.Close()
		return nil, fmt.Errorf("%s: %w", filePath, ErrParseRejected)
	}

	return &ParsedUnit{
		FilePath: filePath,
		Source:   source,
		Tree:     tree,
		Root:     root,
	}, nil
}

// AnalysisContext 提供单个文件分析所需的上下文
type AnalysisContext struct {
	Ctx      context.Context
	FilePath string
	Source   []byte
	Options  Options
	Logger   hclog.Logger
}

// NewAnalysisContext 创建新的分析上下文
func NewAnalysisContext(ctx context.Context, filePath string, source []byte, opts Options) *AnalysisContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &AnalysisContext{
		Ctx:      ctx,
		FilePath: filePath,
		Source:   source,
		Options:  opts,
		Logger:   hclog.NewNullLogger(),
	}
}

// WithLogger 设置日志器
func (ctx *AnalysisContext) WithLogger(logger hclog.Logger) *AnalysisContext {
	if logger != nil {
		ctx.Logger = logger
	}
	return ctx
}

// LineCount 源码行数（末尾无换行的最后一行也计入）
func (ctx *AnalysisContext) LineCount() int {
	return CountLines(ctx.Source)
}

// CountLines 统计行数
func CountLines(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	n := strings.Count(string(source), "\n")
	if source[len(source)-1] != '\n' {
		n++
	}
	return n
}

// NodeText 获取节点的源代码文本
func NodeText(source []byte, node *sitter.Node) string {
	if node == nil {
		return ""
	}

	start := node.StartByte()
	end := node.EndByte()

	// 边界检查，防止越界
	if end > uint32(len(source)) {
		end = uint32(len(source))
	}
	if start > end {
		start = 0
	}
	if start >= uint32(len(source)) {
		return ""
	}

	return string(source[start:end])
}

// NodePosition 节点起始位置（1 基索引）
func NodePosition(node *sitter.Node) (line, column int) {
	if node == nil {
		return 1, 1
	}
	p := node.StartPoint()
	return int(p.Row) + 1, int(p.Column) + 1
}

// SafeNamedChildren 获取所有命名子节点
func SafeNamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	count := int(node.NamedChildCount())
	children := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if child := node.NamedChild(i); child != nil {
			children = append(children, child)
		}
	}
	return children
}

// SafeChildren 获取所有子节点（含匿名节点）
func SafeChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	count := int(node.ChildCount())
	children := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if child := node.Child(i); child != nil {
			children = append(children, child)
		}
	}
	return children
}

// SafeType 获取节点类型
func SafeType(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return node.Type()
}
