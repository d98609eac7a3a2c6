package worker

import (
	"context"
	"runtime"
	"sync"

	"pkt.systems/pslog"

	"bubble-overlay/src/logutil"
)

// Job is one unit of work. It runs on a pool goroutine with the context it was
// submitted with.
type Job func(ctx context.Context)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs   chan job
	wg     sync.WaitGroup
	logger pslog.Logger

	closeOnce sync.Once
}

type job struct {
	ctx context.Context
	run Job
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int, logger pslog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = logutil.Discard()
	}
	p := &Pool{jobs: make(chan job, 1), logger: logger}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				p.runJob(id, j)
			}
		}(i)
	}
}

func (p *Pool) runJob(id int, j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker job panicked", "worker", id, "panic", r)
		}
	}()
	if err := j.ctx.Err(); err != nil {
		p.logger.Debug("worker job skipped", "worker", id, "err", err)
		return
	}
	p.logger.Debug("worker job started", "worker", id)
	j.run(j.ctx)
	p.logger.Debug("worker job finished", "worker", id)
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, run Job) bool {
	select {
	case p.jobs <- job{ctx: ctx, run: run}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work. Safe to call more than once.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.jobs) })
	p.wg.Wait()
}
