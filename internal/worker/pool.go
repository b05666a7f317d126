package worker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/metrics"
)

type task func()

// Pool runs post-commit side effects (audit writes) off the request path.
// Jobs must never touch balances.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan task
	log  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewPool(n int, log *zap.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{jobs: make(chan task, 1024), log: log}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
				p.run(job)
			}
		}()
	}
	return p
}

func (p *Pool) run(job task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("worker job panic", zap.Any("panic", rec))
		}
	}()
	job()
}

// Submit enqueues f. It reports false when the pool is stopped.
func (p *Pool) Submit(f task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.jobs <- f
	metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
	return true
}

// Stop drains queued jobs and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
