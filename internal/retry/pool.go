package retry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pool is the bounded worker pool shared by ingress and the scheduler
// [spec §5]: "Both ingress and the scheduler submit work to a shared
// worker pool (default 16 workers)."
type Pool struct {
	workers int
	tasks   chan func(context.Context)
	logger  *slog.Logger

	mu         sync.Mutex
	running    bool
	wg         sync.WaitGroup
	cancelFunc context.CancelFunc
}

func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 16
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan func(context.Context), queueSize),
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	ctx, p.cancelFunc = context.WithCancel(ctx)
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.logger.Info("worker pool started", slog.Int("workers", p.workers))
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Run the tasks still queued before exiting, with a context
			// that is not cancelled along with the workers.
			drainCtx := context.WithoutCancel(ctx)
			for {
				select {
				case task := <-p.tasks:
					task(drainCtx)
				default:
					return
				}
			}
		case task, open := <-p.tasks:
			if !open {
				return
			}
			task(ctx)
		}
	}
}

// Submit enqueues a delivery task. It never blocks: if the internal queue
// is full the task is dropped and reported so the caller can retry later
// (a due row is simply picked up again on the next scheduler tick).
func (p *Pool) Submit(task func(context.Context)) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		p.logger.Warn("worker pool queue full, dropping task for this tick")
		return false
	}
}

// Stop signals every worker to exit and waits up to gracePeriod for
// in-flight and still-queued tasks to finish [spec §5].
func (p *Pool) Stop(gracePeriod time.Duration) {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancelFunc
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-time.After(gracePeriod):
		p.logger.Warn("worker pool stop timed out", slog.Duration("grace_period", gracePeriod))
	}
}
