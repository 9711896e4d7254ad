// Package parallel runs independent per-series jobs on a fixed set of
// worker goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Pool runs indexed jobs on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue is
// empty, so a few long series do not hold up the rest of an update.
//
// A nil *Pool is valid and runs every job on the calling goroutine.
// Pool is safe for concurrent use.
type Pool struct {
	// mu is held shared by Run and exclusively by Close, so Close never
	// strands a queued job.
	mu     sync.RWMutex
	closed bool

	queues []chan func()
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewPool starts a pool with the given number of workers. Zero or negative
// uses GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(8, workers*4)

	p := &Pool{
		queues: make([]chan func(), workers),
		done:   make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			return
		case job := <-own:
			job()
			continue
		default:
		}

		if job := p.steal(id); job != nil {
			job()
			continue
		}

		select {
		case <-p.done:
			return
		case job := <-own:
			job()
		}
	}
}

// steal takes one job from another worker's queue, or returns nil.
func (p *Pool) steal(id int) func() {
	for i := range p.queues {
		if i == id {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// Run calls fn(i) for every i in [0, n) and returns when all calls have
// finished. Jobs are spread round-robin across the workers. On a nil or
// closed pool, or for a single job, fn runs on the calling goroutine.
func (p *Pool) Run(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if p == nil {
		runInline(n, fn)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed || n == 1 || len(p.queues) == 1 {
		runInline(n, fn)
		return
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		p.queues[i%len(p.queues)] <- func() {
			defer wg.Done()
			fn(i)
		}
	}
	wg.Wait()
}

func runInline(n int, fn func(i int)) {
	for i := range n {
		fn(i)
	}
}

// Workers returns the number of workers, or 0 for a nil pool.
func (p *Pool) Workers() int {
	if p == nil {
		return 0
	}
	return len(p.queues)
}

// Close stops the workers after in-flight Run calls return. Later Run
// calls execute inline. Safe to call multiple times and on a nil pool.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()
}
