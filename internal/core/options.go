package core

// Options 规则参数（由 config 包从 YAML 生成）
type Options struct {
	// HandleTypes 共享所有权句柄类型名（最外层构造器）
	HandleTypes []string
	// WeakTypes 对应的弱引用类型名
	WeakTypes []string
	// Constructors 视为"新建句柄"的关联函数
	Constructors []string
	// RelaunderOps 从裸指针重建句柄的关联函数
	RelaunderOps []string
	// ChainMethods 产生句柄的方法链
	ChainMethods []string
	// EntryPointFragments 函数名包含这些片段即视为闭包工厂
	EntryPointFragments []string
	// EntryPointPrefixes 函数名以这些前缀开头即视为闭包工厂
	EntryPointPrefixes []string
	// ClosureTypes 调用其关联函数即构造闭包（如 Closure::wrap）
	ClosureTypes []string
	// ClosureFunctions 以闭包为参数、视同构造闭包的自由函数
	ClosureFunctions []string
	// ClosureTokens 文本扫描使用的闭包引导标记
	ClosureTokens []string
	// ClosurePrescan 进入函数时先浅扫描函数体是否存在闭包
	ClosurePrescan bool
}

// DefaultOptions 默认参数（Rc/Weak）
func DefaultOptions() Options {
	return Options{
		HandleTypes:  []string{"Rc"},
		WeakTypes:    []string{"Weak"},
		Constructors: []string{"new", "default", "from", "clone"},
		RelaunderOps: []string{"from_raw", "increment_strong_count"},
		ChainMethods: []string{"to_rc", "into_rc", "as_rc", "wrap_rc"},
		EntryPointFragments: []string{
			"spawn", "start", "register", "subscribe", "listen",
			"connect", "watch", "callback", "handler", "setup", "init",
		},
		EntryPointPrefixes: []string{"on_"},
		ClosureTypes:       []string{"Closure"},
		ClosureFunctions:   []string{"spawn_local", "set_timeout", "set_interval", "request_animation_frame"},
		ClosureTokens: []string{
			"move |", "move||", "|| {", "||{", "|_| ", "|_|{",
			"Closure::wrap(", "Closure::new(", "Closure::once(", "Closure::once_into_js(",
			"spawn_local(",
		},
		ClosurePrescan: true,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IsHandleType 是否为句柄类型
func (o Options) IsHandleType(name string) bool {
	return containsString(o.HandleTypes, name)
}

// IsWeakType 是否为弱引用类型
func (o Options) IsWeakType(name string) bool {
	return containsString(o.WeakTypes, name)
}

// IsConstructor 是否为构造关联函数
func (o Options) IsConstructor(name string) bool {
	return containsString(o.Constructors, name)
}

// IsRelaunderOp 是否为裸指针重建操作
func (o Options) IsRelaunderOp(name string) bool {
	return containsString(o.RelaunderOps, name)
}

// IsChainMethod 是否为句柄方法链
func (o Options) IsChainMethod(name string) bool {
	return containsString(o.ChainMethods, name)
}

// IsClosureType 是否为闭包包装类型
func (o Options) IsClosureType(name string) bool {
	return containsString(o.ClosureTypes, name)
}

// IsClosureFunction 是否为接收闭包的自由函数
func (o Options) IsClosureFunction(name string) bool {
	return containsString(o.ClosureFunctions, name)
}
