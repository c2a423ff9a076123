package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Job 任务接口
type Job interface {
	ID() string
	Run(ctx context.Context) (*Report, error)
}

// Result 任务结果
type Result struct {
	JobID  string
	Report *Report
	Error  error
}

// PoolStats 工作池统计信息
type PoolStats struct {
	JobsSubmitted   int64 `json:"jobs_submitted"`
	JobsCompleted   int64 `json:"jobs_completed"`
	JobsFailed      int64 `json:"jobs_failed"`
	ActiveWorkers   int64 `json:"active_workers"`
	TotalExecTimeNs int64 `json:"total_exec_time_ns"`
}

// WorkerPool 工作池；各文件的分析互不共享可变状态，可以任意并行
type WorkerPool struct {
	jobCh     chan Job
	resultsCh chan Result
	workers   int
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stats     PoolStats
	closeOnce sync.Once
}

// NewWorkerPool 创建工作池
func NewWorkerPool(ctx context.Context, workers int, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		jobCh:     make(chan Job, queueSize),
		resultsCh: make(chan Result, queueSize),
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start 启动工作池
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// worker 工作协程
func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for job := range wp.jobCh {
		atomic.AddInt64(&wp.stats.ActiveWorkers, 1)
		startTime := time.Now()

		rep, err := job.Run(wp.ctx)

		atomic.AddInt64(&wp.stats.JobsCompleted, 1)
		atomic.AddInt64(&wp.stats.TotalExecTimeNs, int64(time.Since(startTime)))
		if err != nil {
			atomic.AddInt64(&wp.stats.JobsFailed, 1)
		}
		atomic.AddInt64(&wp.stats.ActiveWorkers, -1)

		select {
		case wp.resultsCh <- Result{JobID: job.ID(), Report: rep, Error: err}:
		case <-wp.ctx.Done():
			return
		}
	}
}

// Submit 提交任务，队列满时阻塞直到有空位或上下文取消
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobCh <- job:
		atomic.AddInt64(&wp.stats.JobsSubmitted, 1)
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// CloseInput 不再提交任务；工作协程处理完队列后退出，随后关闭结果通道
func (wp *WorkerPool) CloseInput() {
	wp.closeOnce.Do(func() {
		close(wp.jobCh)
		go func() {
			wp.wg.Wait()
			close(wp.resultsCh)
		}()
	})
}

// GetResults 获取结果通道
func (wp *WorkerPool) GetResults() <-chan Result {
	return wp.resultsCh
}

// Stop 取消所有工作
func (wp *WorkerPool) Stop() {
	wp.cancel()
	wp.CloseInput()
}

// GetStats 获取统计信息
func (wp *WorkerPool) GetStats() map[string]interface{} {
	submitted := atomic.LoadInt64(&wp.stats.JobsSubmitted)
	completed := atomic.LoadInt64(&wp.stats.JobsCompleted)
	totalNs := atomic.LoadInt64(&wp.stats.TotalExecTimeNs)

	avg := time.Duration(0)
	if completed > 0 {
		avg = time.Duration(totalNs / completed)
	}

	return map[string]interface{}{
		"jobs_submitted": submitted,
		"jobs_completed": completed,
		"jobs_failed":    atomic.LoadInt64(&wp.stats.JobsFailed),
		"active_workers": atomic.LoadInt64(&wp.stats.ActiveWorkers),
		"avg_exec_time":  avg.String(),
	}
}
