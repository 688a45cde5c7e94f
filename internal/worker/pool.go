package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"storefront-go/internal/metrics"
)

var (
	ErrPoolStopped = errors.New("worker pool is not running")
)

// Task represents a unit of work for the worker pool
type Task interface {
	Process(ctx context.Context) error
}

// TaskFunc adapts a function to Task
type TaskFunc func(ctx context.Context) error

// Process calls f(ctx)
func (f TaskFunc) Process(ctx context.Context) error { return f(ctx) }

type namedTask struct {
	name string
	Task
}

func (n namedTask) Name() string { return n.name }

// Named labels a task for metrics
func Named(name string, task Task) Task {
	return namedTask{name: name, Task: task}
}

func taskName(task Task) string {
	if n, ok := task.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "task"
}

type job struct {
	ctx    context.Context
	task   Task
	result chan<- error
}

// WorkerPool manages a pool of worker goroutines
// and a queue of tasks to process
type WorkerPool struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	workers  int
	mu       sync.Mutex
	running  bool
	tasks    chan job // buffered channel for tasks
	queueCap int      // capacity of the task queue
	failed   atomic.Int64
	done     atomic.Int64
}

// PoolStats holds monitoring information about the worker pool
type PoolStats struct {
	Workers     int   `json:"workers"`
	QueueLength int   `json:"queue_length"`
	Completed   int64 `json:"completed"`
	Failed      int64 `json:"failed"`
}

// NewWorkerPool creates a new WorkerPool with the given number of workers and queue capacity
func NewWorkerPool(workers, queueCap int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueCap < 1 {
		queueCap = 10 // default queue size
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		ctx:      ctx,
		cancel:   cancel,
		workers:  workers,
		tasks:    make(chan job, queueCap),
		queueCap: queueCap,
	}
}

// Start launches the worker goroutines
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.ctx.Err() != nil {
		return
	}
	p.running = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
}

// Stop signals all workers to exit and waits for them to finish.
// Queued tasks that have not started are abandoned.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.cancel()
	p.wg.Wait()
}

// Run queues every task, waits for all of them and returns their errors
// joined. Tasks receive ctx.
func (p *WorkerPool) Run(ctx context.Context, tasks ...Task) error {
	if !p.isRunning() {
		return ErrPoolStopped
	}

	results := make(chan error, len(tasks))
	queued := 0
	var errs []error
	for _, task := range tasks {
		select {
		case p.tasks <- job{ctx: ctx, task: task, result: results}:
			queued++
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		case <-p.ctx.Done():
			errs = append(errs, ErrPoolStopped)
		}
		if len(errs) > 0 {
			break
		}
	}

	for i := 0; i < queued; i++ {
		select {
		case err := <-results:
			if err != nil {
				errs = append(errs, err)
			}
		case <-p.ctx.Done():
			return errors.Join(append(errs, ErrPoolStopped)...)
		}
	}
	return errors.Join(errs...)
}

func (p *WorkerPool) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// workerLoop is the main loop for each worker goroutine
func (p *WorkerPool) workerLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.tasks:
			err := p.process(j)
			if j.result != nil {
				j.result <- err
			}
		}
	}
}

// process runs a single task and records its outcome
func (p *WorkerPool) process(j job) (err error) {
	name := taskName(j.task)
	metrics.TasksInFlight.Inc()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
		metrics.TasksInFlight.Dec()
		metrics.TaskDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			p.failed.Add(1)
			metrics.TasksFailed.WithLabelValues(name).Inc()
			return
		}
		p.done.Add(1)
		metrics.TasksCompleted.WithLabelValues(name).Inc()
	}()

	if err := j.ctx.Err(); err != nil {
		return err
	}
	return j.task.Process(j.ctx)
}

// Workers returns the number of worker goroutines
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Stats returns current statistics about the worker pool
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:     p.workers,
		QueueLength: len(p.tasks),
		Completed:   p.done.Load(),
		Failed:      p.failed.Load(),
	}
}
