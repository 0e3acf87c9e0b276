// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package connector

import "sync"

// workerPool runs tasks on a fixed number of goroutines. Tasks wait in an
// unbounded FIFO so Submit never blocks the caller.
type workerPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	idle    *sync.Cond
	tasks   []func()
	closed  bool
	pending int // queued plus running tasks
	wg      sync.WaitGroup
}

func newWorkerPool(workers int) *workerPool {
	if workers < 1 {
		workers = 1
	}
	p := &workerPool{}
	p.cond = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues a task. It returns false once the pool is closed.
func (p *workerPool) Submit(task func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.pending++
	p.tasks = append(p.tasks, task)
	p.cond.Signal()
	return true
}

// Wait blocks until every submitted task has finished. Submit may be called
// concurrently; tasks submitted while waiting are waited for too.
func (p *workerPool) Wait() {
	p.mu.Lock()
	for p.pending > 0 {
		p.idle.Wait()
	}
	p.mu.Unlock()
}

// Close stops accepting tasks, runs the queued ones and waits for the
// workers to exit
func (p *workerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.tasks) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks[0] = nil
		p.tasks = p.tasks[1:]
		p.mu.Unlock()

		p.run(task)
	}
}

func (p *workerPool) run(task func()) {
	defer p.done()
	defer func() {
		// Tasks recover their own panics; this only keeps the worker alive
		_ = recover()
	}()
	task()
}

func (p *workerPool) done() {
	p.mu.Lock()
	p.pending--
	if p.pending == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()
}
