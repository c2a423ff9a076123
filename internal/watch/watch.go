package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// DefaultDebounce 连续文件事件合并为一次触发的等待时间
const DefaultDebounce = 300 * time.Millisecond

// Filter 决定哪些目录需要监听、哪些文件变更需要触发
type Filter interface {
	SkipDir(name string) bool
	IsSource(name string) bool
}

// Watcher 监听目录树，源文件变更后去抖触发回调
type Watcher struct {
	root     string
	filter   Filter
	debounce time.Duration
	logger   hclog.Logger
}

// New 创建监听器
func New(root string, filter Filter, debounce time.Duration, logger hclog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Watcher{root: root, filter: filter, debounce: debounce, logger: logger}
}

// Run 阻塞直到 ctx 取消；onChange 收到本轮去抖窗口内变更的源文件（已排序）
// onChange 只在 Run 所在的 goroutine 上串行调用，Run 返回后不会再被调用
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	defer watcher.Close()

	if err := w.addWatchRecursive(watcher, w.root); err != nil {
		return fmt.Errorf("watch %s failed: %w", w.root, err)
	}

	// 定时器只发信号，容量 1 合并重复触发
	var (
		pending = make(map[string]bool)
		timer   *time.Timer
		fire    = make(chan struct{}, 1)
	)
	signal := func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			if ctx.Err() != nil {
				return nil
			}
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			pending = make(map[string]bool)
			sort.Strings(changed)
			onChange(changed)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(watcher, ev) {
				continue
			}
			pending[ev.Name] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, signal)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// handleEvent 新建目录加入监听；返回该事件是否应触发重新分析
func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.filter.SkipDir(name) {
				if err := w.addWatchRecursive(watcher, ev.Name); err != nil {
					w.logger.Warn("cannot watch new directory", "path", ev.Name, "error", err)
				}
			}
			return false
		}
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return w.filter.IsSource(name)
}

func (w *Watcher) addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.filter.SkipDir(info.Name()) {
			return filepath.SkipDir
		}
		w.logger.Trace("watching", "path", path)
		return watcher.Add(path)
	})
}
