package core

import (
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Metrics 单个名称下累计的计时
type Metrics struct {
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
	Max   time.Duration `json:"max"`
}

// Avg 平均耗时
func (m Metrics) Avg() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.Total / time.Duration(m.Count)
}

// PerformanceMonitor 性能监控器（检测器/文件耗时），可并发记录
type PerformanceMonitor struct {
	metrics map[string]*Metrics
	mutex   sync.Mutex
	enabled bool
}

// NewPerformanceMonitor 创建性能监控器；未启用时所有记录为空操作
func NewPerformanceMonitor(enabled bool) *PerformanceMonitor {
	return &PerformanceMonitor{
		metrics: make(map[string]*Metrics),
		enabled: enabled,
	}
}

// RecordTimer 记录一次耗时
func (pm *PerformanceMonitor) RecordTimer(name string, duration time.Duration) {
	if pm == nil || !pm.enabled {
		return
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	m, ok := pm.metrics[name]
	if !ok {
		m = &Metrics{Name: name}
		pm.metrics[name] = m
	}
	m.Count++
	m.Total += duration
	if duration > m.Max {
		m.Max = duration
	}
}

// GetMetrics 按总耗时降序返回快照
func (pm *PerformanceMonitor) GetMetrics() []Metrics {
	if pm == nil {
		return nil
	}
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	out := make([]Metrics, 0, len(pm.metrics))
	for _, m := range pm.metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Timer 计时器
type Timer struct {
	start   time.Time
	name    string
	monitor *PerformanceMonitor
}

// NewTimer 创建计时器
func (pm *PerformanceMonitor) NewTimer(name string) *Timer {
	return &Timer{
		start:   time.Now(),
		name:    name,
		monitor: pm,
	}
}

// Stop 停止计时器
func (t *Timer) Stop() {
	t.monitor.RecordTimer(t.name, time.Since(t.start))
}

// LogSummary 以 debug 级别输出耗时摘要
func (pm *PerformanceMonitor) LogSummary(logger hclog.Logger) {
	if pm == nil || !pm.enabled || logger == nil {
		return
	}
	for _, m := range pm.GetMetrics() {
		logger.Debug("timing", "name", m.Name, "count", m.Count, "total", m.Total, "avg", m.Avg(), "max", m.Max)
	}
}
