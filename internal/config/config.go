package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/paiml/probar-sub002/internal/core"
)

// Config statesync 配置文件（YAML）
type Config struct {
	Logger   Logger   `yaml:"logger"`
	Analysis Analysis `yaml:"analysis"`
	Scan     Scan     `yaml:"scan"`
	Output   Output   `yaml:"output"`
}

type Logger struct {
	Level       string `yaml:"level"`
	JSONFormat  bool   `yaml:"json_format"`
	DisableTime bool   `yaml:"disable_time"`
}

// Analysis 检测用的词表；留空的项使用内置默认值
type Analysis struct {
	HandleTypes         []string `yaml:"handle_types"`
	WeakTypes           []string `yaml:"weak_types"`
	Constructors        []string `yaml:"constructors"`
	RelaunderOps        []string `yaml:"relaunder_ops"`
	ChainMethods        []string `yaml:"chain_methods"`
	EntryPointFragments []string `yaml:"entry_point_fragments"`
	EntryPointPrefixes  []string `yaml:"entry_point_prefixes"`
	ClosureTypes        []string `yaml:"closure_types"`
	ClosureFunctions    []string `yaml:"closure_functions"`
	ClosureTokens       []string `yaml:"closure_tokens"`
	ClosurePrescan      *bool    `yaml:"closure_prescan"`
}

type Scan struct {
	Extensions    []string `yaml:"extensions"`
	ExcludedDirs  []string `yaml:"excluded_dirs"`
	Workers       int      `yaml:"workers"`
	DisabledRules []string `yaml:"disabled_rules"`
	MinSeverity   string   `yaml:"min_severity"`
}

type Output struct {
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

var (
	DefaultExtensions   = []string{".rs"}
	DefaultExcludedDirs = []string{"target", "node_modules", "vendor", "build", "dist", ".git", "pkg"}
	SupportedFormats    = []string{"text", "json", "sarif", "all"}
)

// Default 内置默认配置
func Default() *Config {
	return &Config{
		Logger: Logger{Level: "INFO", DisableTime: true},
		Scan: Scan{
			Extensions:   append([]string(nil), DefaultExtensions...),
			ExcludedDirs: append([]string(nil), DefaultExcludedDirs...),
			Workers:      runtime.NumCPU(),
			MinSeverity:  "info",
		},
		Output: Output{Format: "text"},
	}
}

// ValidateConfigPath 路径存在且不是目录
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML 解码 YAML 文件到 data
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// Load 在默认配置之上叠加配置文件；path 为空时直接返回默认配置
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := LoadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must not be negative, got %d", c.Scan.Workers)
	}
	if c.Scan.MinSeverity != "" {
		if _, err := core.ParseSeverity(c.Scan.MinSeverity); err != nil {
			return fmt.Errorf("scan.min_severity: %w", err)
		}
	}
	if c.Output.Format != "" && !contains(SupportedFormats, strings.ToLower(c.Output.Format)) {
		return fmt.Errorf("output.format %q is not one of %s", c.Output.Format, strings.Join(SupportedFormats, ", "))
	}
	for _, code := range c.Scan.DisabledRules {
		if _, ok := core.LookupRule(code); !ok {
			return fmt.Errorf("scan.disabled_rules: unknown rule %q", code)
		}
	}
	for _, ext := range c.Scan.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("scan.extensions: %q must start with a dot", ext)
		}
	}
	return nil
}

// ToOptions 转换为分析选项
func (c *Config) ToOptions() core.Options {
	opts := core.DefaultOptions()
	a := c.Analysis
	override := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = append([]string(nil), src...)
		}
	}
	override(&opts.HandleTypes, a.HandleTypes)
	override(&opts.WeakTypes, a.WeakTypes)
	override(&opts.Constructors, a.Constructors)
	override(&opts.RelaunderOps, a.RelaunderOps)
	override(&opts.ChainMethods, a.ChainMethods)
	override(&opts.EntryPointFragments, a.EntryPointFragments)
	override(&opts.EntryPointPrefixes, a.EntryPointPrefixes)
	override(&opts.ClosureTypes, a.ClosureTypes)
	override(&opts.ClosureFunctions, a.ClosureFunctions)
	override(&opts.ClosureTokens, a.ClosureTokens)
	if a.ClosurePrescan != nil {
		opts.ClosurePrescan = *a.ClosurePrescan
	}
	return opts
}

// MinSeverity 解析后的最低严重性，未设置时为 Info
func (c *Config) MinSeverity() core.Severity {
	s, err := core.ParseSeverity(c.Scan.MinSeverity)
	if err != nil {
		return core.SeverityInfo
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
