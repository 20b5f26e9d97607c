// Package pool provides a bounded worker pool for calls that block a goroutine
// for a long time (job submission plus polling).
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Task represents a unit of work.
type Task func(ctx context.Context) error

// Config configures the pool.
type Config struct {
	MaxWorkers   int           `yaml:"max_workers" json:"max_workers"`
	QueueSize    int           `yaml:"queue_size" json:"queue_size"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	PanicHandler func(any)     `yaml:"-" json:"-"`
}

// DefaultConfig returns defaults sized for a handful of concurrent
// long-running image synthesis jobs.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:  16,
		QueueSize:   64,
		IdleTimeout: 60 * time.Second,
	}
}

// Pool runs tasks on at most MaxWorkers goroutines. Workers are spawned lazily
// and exit after IdleTimeout, keeping at least one alive.
type Pool struct {
	maxWorkers  int
	queue       chan job
	workerCount atomic.Int32
	activeCount atomic.Int32

	mu     sync.RWMutex // guards closed against sends on queue
	closed bool
	wg     sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	idleTimeout  time.Duration
	panicHandler func(any)
}

type job struct {
	task   Task
	ctx    context.Context
	result chan error
}

// New creates a pool. Non-positive sizes fall back to DefaultConfig values.
func New(cfg Config) *Pool {
	def := DefaultConfig()
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	return &Pool{
		maxWorkers:   cfg.MaxWorkers,
		queue:        make(chan job, cfg.QueueSize),
		idleTimeout:  cfg.IdleTimeout,
		panicHandler: cfg.PanicHandler,
	}
}

// Go enqueues task without blocking and returns a channel that receives the
// task's result exactly once. The task runs with ctx as given; callers that
// must not cancel an in-flight task should pass a detached context.
func (p *Pool) Go(ctx context.Context, task Task) (<-chan error, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	p.submitted.Add(1)
	j := job{task: task, ctx: ctx, result: make(chan error, 1)}

	select {
	case p.queue <- j:
		p.ensureWorker()
		return j.result, nil
	default:
	}

	// 队列已满（或无缓冲且无空闲 worker）：新 worker 必然会来接收，直接交接
	if p.trySpawnWorker() {
		select {
		case p.queue <- j:
			return j.result, nil
		case <-ctx.Done():
			p.rejected.Add(1)
			return nil, ctx.Err()
		}
	}
	p.rejected.Add(1)
	return nil, ErrPoolFull
}

func (p *Pool) ensureWorker() {
	if p.workerCount.Load() < int32(p.maxWorkers) {
		p.trySpawnWorker()
	}
}

func (p *Pool) trySpawnWorker() bool {
	for {
		current := p.workerCount.Load()
		if current >= int32(p.maxWorkers) {
			return false
		}
		if p.workerCount.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.worker()
			return true
		}
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	defer p.workerCount.Add(-1)

	timer := time.NewTimer(p.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return
			}

			p.activeCount.Add(1)
			err := p.run(j)
			p.activeCount.Add(-1)

			j.result <- err
			close(j.result)

			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}
			timer.Reset(p.idleTimeout)

		case <-timer.C:
			if p.workerCount.Load() > 1 {
				return
			}
			timer.Reset(p.idleTimeout)
		}
	}
}

func (p *Pool) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return j.task(j.ctx)
}

// Close stops accepting tasks and waits for queued and running tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(p.workerCount.Load()),
		Active:    int(p.activeCount.Load()),
		Queued:    len(p.queue),
		Capacity:  p.maxWorkers + cap(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Stats contains pool statistics.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Capacity  int   `json:"capacity"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
