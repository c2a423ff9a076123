package detectors

import (
	"strings"

	"github.com/paiml/probar-sub002/internal/core"
)

// HandleOrigin 局部句柄的来源
type HandleOrigin int

const (
	// OriginConstructed 在函数内新建（与 self 持有的句柄断开）
	OriginConstructed HandleOrigin = iota
	// OriginSelfClone 从 self 字段克隆（正确写法）
	OriginSelfClone
)

// LocalHandle 已证明持有句柄的局部变量
type LocalHandle struct {
	Name   string
	Origin HandleOrigin
	Pos    core.Position
}

// closureState 单个函数的上下文
type closureState struct {
	functionName    string
	inFunction      bool
	createsClosures bool
	handles         map[string]*LocalHandle
	handleOrder     []string
	selfFields      map[string]bool
}

// ClosureContext 闭包上下文追踪器
// 状态只会从"非闭包工厂"单调升级为"闭包工厂"，在下一个函数入口重置
type ClosureContext struct {
	opts  core.Options
	state closureState
}

// NewClosureContext 创建追踪器
func NewClosureContext(opts core.Options) *ClosureContext {
	c := &ClosureContext{opts: opts}
	c.state = newClosureState("", false)
	return c
}

func newClosureState(name string, inFunction bool) closureState {
	return closureState{
		functionName: name,
		inFunction:   inFunction,
		handles:      make(map[string]*LocalHandle),
		selfFields:   make(map[string]bool),
	}
}

// IsEntryPointName 函数名启发式：名称像入口/回调注册点
func (c *ClosureContext) IsEntryPointName(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range c.opts.EntryPointPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, frag := range c.opts.EntryPointFragments {
		if frag != "" && strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Enter 进入函数：清空局部句柄集合，按名称启发式设置初始状态
// 返回进入前的状态，供嵌套函数退出时恢复
func (c *ClosureContext) Enter(name string) closureState {
	saved := c.state
	c.state = newClosureState(name, true)
	c.state.createsClosures = c.IsEntryPointName(name)
	return saved
}

// Exit 离开函数：丢弃当前状态并恢复外层状态
func (c *ClosureContext) Exit(saved closureState) {
	c.state = saved
}

// FunctionName 当前函数名
func (c *ClosureContext) FunctionName() string {
	return c.state.functionName
}

// InFunction 是否位于函数体内
func (c *ClosureContext) InFunction() bool {
	return c.state.inFunction
}

// CreatesClosures 当前函数是否为闭包工厂
func (c *ClosureContext) CreatesClosures() bool {
	return c.state.inFunction && c.state.createsClosures
}

// MarkClosure 观察到闭包字面量或闭包构造调用，升级为闭包工厂
func (c *ClosureContext) MarkClosure() {
	if c.state.inFunction {
		c.state.createsClosures = true
	}
}

// TrackHandle 登记持有句柄的局部变量；同名重新绑定覆盖旧记录
func (c *ClosureContext) TrackHandle(name string, origin HandleOrigin, p core.Position) {
	if name == "" {
		return
	}
	if _, exists := c.state.handles[name]; !exists {
		c.state.handleOrder = append(c.state.handleOrder, name)
	}
	c.state.handles[name] = &LocalHandle{Name: name, Origin: origin, Pos: p}
}

// Forget 变量被重新绑定为非句柄值
func (c *ClosureContext) Forget(name string) {
	delete(c.state.handles, name)
}

// Handle 查询局部句柄
func (c *ClosureContext) Handle(name string) (*LocalHandle, bool) {
	h, ok := c.state.handles[name]
	return h, ok
}

// Handles 按首次登记顺序返回局部句柄
func (c *ClosureContext) Handles() []*LocalHandle {
	out := make([]*LocalHandle, 0, len(c.state.handles))
	for _, name := range c.state.handleOrder {
		if h, ok := c.state.handles[name]; ok {
			out = append(out, h)
		}
	}
	return out
}

// NoteSelfField 记录函数体内出现的 `self.<field>`
func (c *ClosureContext) NoteSelfField(field string) {
	if field != "" {
		c.state.selfFields[field] = true
	}
}

// UsesSelfField 函数体是否访问过该字段
func (c *ClosureContext) UsesSelfField(field string) bool {
	return c.state.selfFields[field]
}
