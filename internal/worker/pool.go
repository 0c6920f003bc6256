package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrQueueFull is returned when the pool cannot accept more work.
var ErrQueueFull = errors.New("worker queue is full")

// ErrStopped is returned when submitting to a stopped pool.
var ErrStopped = errors.New("worker pool is stopped")

// Task is one unit of asynchronous work. Tasks receive the pool's base
// context and must resolve their own outcome (e.g. a ledger entry); the
// pool never reports task results back to the submitter.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of workers so one slow
// destination cannot block unrelated transfers.
type Pool struct {
	tasks   chan Task
	workers int

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewPool creates a pool with the given worker count and queue capacity.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
	}
}

// Start launches the workers. The given context is the base context for
// all tasks; cancelling it (or calling Stop) ends the pool.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(ctx, id, task)
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("error", r).
				Int("worker", id).
				Msg("Panic recovered in transfer worker")
		}
	}()
	task(ctx)
}

// Submit enqueues a task without waiting for it to run. The caller gets
// an immediate answer; task outcomes are observed elsewhere.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop stops accepting work, lets queued tasks drain, and waits for the
// workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
}
