// Package pool runs batches of fetch tasks across a bounded two-level
// worker pool: each worker bounds its own concurrent executions, and an
// outer semaphore bounds total in-flight executions across all workers so
// the proxy API is never hit harder than the configured global cap.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxTaskAttempts bounds how many times a task whose execution panics is
// rerun before it is reported failed.
const maxTaskAttempts = 2

// ErrSkipped marks a task that was never dispatched because Stop was
// called (budget exhaustion or cancellation) before its turn.
var ErrSkipped = eris.New("pool: task skipped after stop")

// Task is one unit of pool work. The pool owns it for the duration of
// Execute; the closure must be safe to run on any worker.
type Task struct {
	ID      string
	Payload any
	Execute func(ctx context.Context) (any, error)
}

// Result is the outcome of one Task, correlated to its input by ID, never
// by completion order.
type Result struct {
	ID       string
	OK       bool
	Value    any
	Err      error
	Skipped  bool
	Duration time.Duration
}

// Stats is a snapshot of batch progress.
type Stats struct {
	Completed       int           `json:"completed"`
	Total           int           `json:"total"`
	Errors          int           `json:"errors"`
	ErrorRate       float64       `json:"error_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
}

// Config bounds the pool.
type Config struct {
	// GlobalMaxConcurrency caps simultaneous in-flight executions across
	// all workers. Hard limit, enforced by an outer semaphore.
	GlobalMaxConcurrency int
	// PerWorkerConcurrency caps concurrent executions inside one worker.
	PerWorkerConcurrency int
	// QueueSize bounds the dispatch queue; producers block when full.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.GlobalMaxConcurrency < 1 {
		c.GlobalMaxConcurrency = 16
	}
	if c.PerWorkerConcurrency < 1 {
		c.PerWorkerConcurrency = 4
	}
	if c.QueueSize < 1 {
		c.QueueSize = 1000
	}
	return c
}

// ProgressFunc is invoked after each task completes with the running
// completed count and the batch total.
type ProgressFunc func(completed, total int)

// Pool executes task batches. A Pool is sized once for an expected batch
// volume and may execute several batches (search phase, then detail
// phase) before being discarded with its task.
type Pool struct {
	cfg      Config
	shape    Shape
	global   *semaphore.Weighted
	progress ProgressFunc

	stopped atomic.Bool

	mu        sync.Mutex
	completed int
	errors    int
	total     int
	totalTime time.Duration
}

// New creates a pool shaped for totalTaskCount tasks. progress may be nil.
func New(cfg Config, totalTaskCount int, progress ProgressFunc) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		cfg:      cfg,
		shape:    Scale(totalTaskCount, cfg.GlobalMaxConcurrency, cfg.PerWorkerConcurrency),
		global:   semaphore.NewWeighted(int64(cfg.GlobalMaxConcurrency)),
		progress: progress,
	}
}

// Shape returns the worker layout chosen at construction.
func (p *Pool) Shape() Shape {
	return p.shape
}

// Stop prevents any not-yet-dispatched task from starting. In-flight
// tasks run to completion, bounded by their own timeouts.
func (p *Pool) Stop() {
	p.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (p *Pool) Stopped() bool {
	return p.stopped.Load()
}

// Execute runs the batch and returns one Result per input Task, in input
// order regardless of completion order. One task's failure or panic never
// affects its siblings. After Stop, remaining tasks are returned with
// Skipped set and ErrSkipped.
func (p *Pool) Execute(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	slot := make(map[string]int, len(tasks))
	for i, t := range tasks {
		slot[t.ID] = i
		results[i] = Result{ID: t.ID, Skipped: true, Err: ErrSkipped}
	}

	p.mu.Lock()
	p.total += len(tasks)
	p.mu.Unlock()

	type item struct {
		task Task
		pos  int
	}

	queue := make(chan item, min(p.cfg.QueueSize, len(tasks)))
	var resultsMu sync.Mutex

	var producers sync.WaitGroup
	producers.Add(1)
	go func() {
		defer producers.Done()
		defer close(queue)
		for i, t := range tasks {
			if p.stopped.Load() || ctx.Err() != nil {
				return
			}
			select {
			case queue <- item{task: t, pos: i}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var workers sync.WaitGroup
	for w := 0; w < p.shape.Workers; w++ {
		workers.Add(1)
		go func(workerID int) {
			defer workers.Done()

			g := new(errgroup.Group)
			g.SetLimit(p.shape.PerWorker)

			for it := range queue {
				if p.stopped.Load() {
					// Leave the pre-filled skipped result in place.
					continue
				}
				g.Go(func() error {
					res := p.runOne(ctx, workerID, it.task)
					resultsMu.Lock()
					results[slot[res.ID]] = res
					resultsMu.Unlock()
					p.recordCompletion(res)
					return nil
				})
			}
			_ = g.Wait()
		}(w)
	}

	producers.Wait()
	workers.Wait()
	return results
}

// runOne executes a single task under the global cap, isolating panics
// and rerunning a panicked task up to maxTaskAttempts before giving up.
func (p *Pool) runOne(ctx context.Context, workerID int, t Task) Result {
	if err := p.global.Acquire(ctx, 1); err != nil {
		return Result{ID: t.ID, Err: eris.Wrap(err, "pool: acquire global slot")}
	}
	defer p.global.Release(1)

	start := time.Now()
	var value any
	var err error

	for attempt := 1; attempt <= maxTaskAttempts; attempt++ {
		value, err = p.runGuarded(ctx, t)
		var pe *panicError
		if !errors.As(err, &pe) {
			break
		}
		zap.L().Error("pool: task panicked, rerunning",
			zap.String("task_id", t.ID),
			zap.Int("worker", workerID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	res := Result{
		ID:       t.ID,
		OK:       err == nil,
		Value:    value,
		Err:      err,
		Duration: time.Since(start),
	}
	return res
}

type panicError struct {
	val any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("pool: task panic: %v", e.val)
}

func (p *Pool) runGuarded(ctx context.Context, t Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{val: r}
		}
	}()
	return t.Execute(ctx)
}

func (p *Pool) recordCompletion(res Result) {
	p.mu.Lock()
	p.completed++
	if res.Err != nil {
		p.errors++
	}
	p.totalTime += res.Duration
	completed, total := p.completed, p.total
	p.mu.Unlock()

	if p.progress != nil {
		p.progress(completed, total)
	}
}

// GetStats returns a snapshot of batch progress.
func (p *Pool) GetStats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		Completed: p.completed,
		Total:     p.total,
		Errors:    p.errors,
	}
	if p.completed > 0 {
		s.ErrorRate = float64(p.errors) / float64(p.completed)
		s.AvgResponseTime = p.totalTime / time.Duration(p.completed)
	}
	return s
}
