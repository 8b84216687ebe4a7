// Copyright 2023 Kami
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ioengine provides the bounded worker pool and the per-connection
// Strand serial executor that together stand in for asio's io_context plus
// strand. A Pool runs a fixed number of worker goroutines draining posted,
// short-lived continuations; genuinely blocking I/O (accept, dial,
// resolve, read, write) must never be Post-ed to the pool — it is Spawn-ed
// as its own goroutine instead, so that a handful of slow connections can
// never starve the bounded workers that drive everyone else's completions.
package ioengine

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pool is the Go analogue of the source's IoThreadPool: a keep-alive-guarded
// group of worker goroutines draining a shared task queue.
type Pool struct {
	log *zap.Logger

	tasks chan func(context.Context)

	ctx    context.Context
	cancel context.CancelCauseFunc

	workerWG sync.WaitGroup
	spawnWG  sync.WaitGroup

	guardMu sync.Mutex
	guarded bool
}

// ErrAborted is the cancellation cause used by Stop.
var ErrAborted = context.Canceled

// NewPool creates a pool with a queue depth of backlog pending tasks.
func NewPool(log *zap.Logger, backlog int) *Pool {
	if backlog <= 0 {
		backlog = 1024
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Pool{
		log:     log,
		tasks:   make(chan func(context.Context), backlog),
		ctx:     ctx,
		cancel:  cancel,
		guarded: true,
	}
}

// Run starts n persistent worker goroutines. Safe to call once.
func (p *Pool) Run(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.workerWG.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.workerWG.Done()
	for {
		select {
		case fn, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(fn)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) runTask(fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("ioengine: posted task panicked", zap.Any("recover", r))
			panic(r)
		}
	}()
	fn(p.ctx)
}

// Post enqueues a short, non-blocking continuation onto the bounded worker
// queue. It must never itself block on I/O.
func (p *Pool) Post(fn func(context.Context)) {
	select {
	case p.tasks <- fn:
	case <-p.ctx.Done():
	}
}

// Spawn launches fn on its own dedicated goroutine, outside the bounded
// worker count. Use this, never Post, for the blocking syscall itself
// (Accept, DialContext, LookupIPAddr, Read, Write).
func (p *Pool) Spawn(fn func(context.Context)) {
	p.spawnWG.Add(1)
	go func() {
		defer p.spawnWG.Done()
		fn(p.ctx)
	}()
}

// Reset releases the pool's keep-alive guard. Once released, and once all
// Spawn-ed and Post-ed work has drained, Run's workers exit on their own;
// it does not forcibly cancel anything in flight. Callers must guarantee no
// further Post calls occur after Reset, exactly as the source only resets
// its work guard once the application loop has stopped generating work.
func (p *Pool) Reset() {
	p.guardMu.Lock()
	defer p.guardMu.Unlock()
	if !p.guarded {
		return
	}
	p.guarded = false
	close(p.tasks)
}

// Stop forcefully cancels the pool's context, the Go equivalent of
// io_context::stop(). In-flight Spawn-ed I/O is expected to be unblocked by
// the caller closing the underlying net.Conn/net.Listener, exactly as the
// source cancels the socket before closing it.
func (p *Pool) Stop() {
	p.cancel(ErrAborted)
}

// Context returns the pool's context, cancelled by Stop.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Join waits for every worker goroutine and every still-running Spawn-ed
// goroutine to finish. Idempotent.
func (p *Pool) Join() {
	p.workerWG.Wait()
	p.spawnWG.Wait()
}
