// Package workerpool provides a fixed-size pool of workers pulling jobs
// from a single shared unbounded FIFO queue. Enqueueing never blocks the
// caller, which is what lets an accept loop hand off connections without
// stalling behind slow handlers.
package workerpool

import (
	"sync"

	"go.uber.org/zap"
)

// Job is a queued unit of work.
type Job func()

// Pool dispatches jobs to a fixed set of workers in submission order.
// There is no affinity and no priority; a job runs on whichever worker
// dequeues it first.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Job
	closed bool
	wg     sync.WaitGroup
	log    *zap.SugaredLogger
}

// New creates a pool with size workers, each waiting on the shared queue.
func New(size int, log *zap.SugaredLogger) *Pool {
	if size < 1 {
		size = 1
	}

	p := &Pool{log: log}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}

	log.Infow("Worker pool started", "size", size)
	return p
}

// Execute enqueues a job. It returns false when the pool is already shut
// down, in which case the job is dropped.
func (p *Pool) Execute(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	p.queue = append(p.queue, job)
	p.cond.Signal()
	return true
}

// Shutdown closes the queue, lets the workers drain the remaining jobs,
// and joins every worker before returning.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Infow("Worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.closed {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(id, job)
	}
}

// run executes one job, recovering panics so a misbehaving job never takes
// sibling workers down with it.
func (p *Pool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("Worker recovered from panic", "worker", id, "panic", r)
		}
	}()
	job()
}
