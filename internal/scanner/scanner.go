package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/paiml/probar-sub002/internal/config"
	"github.com/paiml/probar-sub002/internal/core"
	"github.com/paiml/probar-sub002/internal/detectors"
)

// Scanner 编排两遍分析：语法树遍历为主，文本扫描兜底并合并
type Scanner struct {
	opts         core.Options
	extensions   []string
	excludedDirs map[string]bool
	workers      int
	disabled     map[string]bool
	minSeverity  core.Severity
	logger       hclog.Logger
	monitor      *core.PerformanceMonitor
	cache        *core.FileCache

	tree core.Detector
	text core.Detector
}

// Option 扫描器选项
type Option func(*Scanner)

// WithOptions 设置分析选项
func WithOptions(opts core.Options) Option {
	return func(s *Scanner) {
		s.opts = opts
	}
}

// WithWorkers 设置并发数
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithExtensions 设置源文件扩展名
func WithExtensions(exts []string) Option {
	return func(s *Scanner) {
		if len(exts) > 0 {
			s.extensions = exts
		}
	}
}

// WithExcludedDirs 设置按名称跳过的目录
func WithExcludedDirs(dirs []string) Option {
	return func(s *Scanner) {
		if len(dirs) > 0 {
			s.excludedDirs = toSet(dirs)
		}
	}
}

// WithDisabledRules 设置不输出的规则编号
func WithDisabledRules(codes []string) Option {
	return func(s *Scanner) {
		s.disabled = toSet(codes)
	}
}

// WithMinSeverity 设置最低输出严重性
func WithMinSeverity(sev core.Severity) Option {
	return func(s *Scanner) {
		s.minSeverity = sev
	}
}

// WithLogger 设置日志器
func WithLogger(logger hclog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMonitor 设置耗时统计
func WithMonitor(pm *core.PerformanceMonitor) Option {
	return func(s *Scanner) {
		s.monitor = pm
	}
}

// WithCache 复用内容未变化文件的分析结果
func WithCache(fc *core.FileCache) Option {
	return func(s *Scanner) {
		s.cache = fc
	}
}

// New 创建扫描器
func New(options ...Option) *Scanner {
	s := &Scanner{
		opts:         core.DefaultOptions(),
		extensions:   config.DefaultExtensions,
		excludedDirs: toSet(config.DefaultExcludedDirs),
		workers:      1,
		disabled:     map[string]bool{},
		minSeverity:  core.SeverityInfo,
		logger:       hclog.NewNullLogger(),
		tree:         detectors.NewStateSyncDetector(),
		text:         detectors.NewTextScanner(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// FromConfig 按配置文件创建扫描器
func FromConfig(cfg *config.Config, logger hclog.Logger, extra ...Option) *Scanner {
	options := []Option{
		WithOptions(cfg.ToOptions()),
		WithWorkers(cfg.Scan.Workers),
		WithExtensions(cfg.Scan.Extensions),
		WithExcludedDirs(cfg.Scan.ExcludedDirs),
		WithDisabledRules(cfg.Scan.DisabledRules),
		WithMinSeverity(cfg.MinSeverity()),
		WithLogger(logger),
	}
	return New(append(options, extra...)...)
}

// AnalyzeSource 分析内存中的源码
// 树解析被拒绝时树遍历贡献零个命中，文本扫描照常运行
func (s *Scanner) AnalyzeSource(ctx context.Context, source []byte, path string) *core.Report {
	if cached, ok := s.cache.Get(path, source); ok {
		s.logger.Trace("cache hit", "file", path)
		return s.filter(cached)
	}
	actx := core.NewAnalysisContext(ctx, path, source, s.opts).WithLogger(s.logger)

	primary, err := s.run(s.tree, actx)
	if err != nil {
		if !errors.Is(err, core.ErrParseRejected) {
			s.logger.Warn("tree pass failed", "file", path, "error", err)
		}
		primary = core.NewReport()
	}
	secondary, err := s.run(s.text, actx)
	if err != nil {
		s.logger.Warn("text pass failed", "file", path, "error", err)
		secondary = core.NewReport()
	}

	combined := core.CombinePasses(primary, secondary)
	// 两遍都失败时仍计入该文件
	if combined.FilesAnalyzed == 0 {
		combined.FilesAnalyzed = 1
		combined.LinesAnalyzed = actx.LineCount()
	}
	s.cache.Put(path, source, combined)
	return s.filter(combined)
}

func (s *Scanner) run(d core.Detector, actx *core.AnalysisContext) (*core.Report, error) {
	timer := s.monitor.NewTimer(d.Name())
	defer timer.Stop()

	rep, err := d.Run(actx)
	if err != nil {
		return nil, core.WrapError(d, err)
	}
	return rep, nil
}

// AnalyzeFile 读取并分析单个文件；读取失败时返回一条 SS-000 Error 命中
func (s *Scanner) AnalyzeFile(ctx context.Context, path string) *core.Report {
	source, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("cannot read file", "file", path, "error", err)
		rep := core.NewReport()
		rep.Add(core.NewError(path, core.RuleReadFailure, fmt.Sprintf("failed to read file: %v", err)))
		return s.filter(rep)
	}
	return s.AnalyzeSource(ctx, source, path)
}

// Collect 递归枚举 root 下的源文件（按路径排序）
// root 本身是文件时直接返回它
func (s *Scanner) Collect(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// 无法进入的子目录不影响其余文件
			s.logger.Debug("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if s.SkipDir(name) {
				s.logger.Trace("skipping directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}
		if s.IsSource(name) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// SkipDir 隐藏目录与构建/版本控制目录不进入
func (s *Scanner) SkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || s.excludedDirs[strings.ToLower(name)]
}

// IsSource 非隐藏且扩展名受支持的文件
func (s *Scanner) IsSource(name string) bool {
	return !strings.HasPrefix(name, ".") && core.IsSourceFile(name, s.extensions)
}

// fileJob 单文件分析任务
type fileJob struct {
	scanner *Scanner
	path    string
}

func (j *fileJob) ID() string {
	return j.path
}

func (j *fileJob) Run(ctx context.Context) (*core.Report, error) {
	return j.scanner.AnalyzeFile(ctx, j.path), nil
}

// AnalyzeDir 并发分析目录下的全部源文件，按路径顺序合并
func (s *Scanner) AnalyzeDir(ctx context.Context, root string) (*core.Report, error) {
	files, err := s.Collect(root)
	if err != nil {
		return nil, err
	}
	s.logger.Info("starting analysis", "root", root, "files", len(files), "workers", s.workers)

	reports, err := s.analyzeFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	project := core.NewReport()
	for _, path := range files {
		project.Merge(reports[path])
	}
	s.logger.Info("analysis finished",
		"files", project.FilesAnalyzed,
		"lines", project.LinesAnalyzed,
		"errors", project.ErrorCount,
		"warnings", project.WarningCount,
		"infos", project.InfoCount)
	s.monitor.LogSummary(s.logger)
	return project, nil
}

func (s *Scanner) analyzeFiles(ctx context.Context, files []string) (map[string]*core.Report, error) {
	reports := make(map[string]*core.Report, len(files))
	if len(files) == 0 {
		return reports, nil
	}

	pool := core.NewWorkerPool(ctx, s.workers, s.workers*2)
	pool.Start()
	defer pool.Stop()

	go func() {
		defer pool.CloseInput()
		for _, path := range files {
			if err := pool.Submit(&fileJob{scanner: s, path: path}); err != nil {
				return
			}
		}
	}()

	for res := range pool.GetResults() {
		if res.Error != nil {
			s.logger.Warn("analysis job failed", "file", res.JobID, "error", res.Error)
			continue
		}
		reports[res.JobID] = res.Report
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Debug("worker pool finished", "stats", pool.GetStats())
	return reports, nil
}

// filter 应用规则禁用列表与最低严重性
func (s *Scanner) filter(rep *core.Report) *core.Report {
	if len(s.disabled) == 0 && s.minSeverity == core.SeverityInfo {
		return rep
	}
	return rep.Filter(func(f core.Finding) bool {
		return !s.disabled[strings.ToLower(f.RuleCode)] && f.Severity >= s.minSeverity
	})
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[strings.ToLower(it)] = true
	}
	return set
}
