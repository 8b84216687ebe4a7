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

package ioengine

import (
	"context"
	"sync"
)

// Strand is a logical serial executor bound to a Pool: functions Post-ed to
// the same Strand never run concurrently with each other, no matter which
// pool worker happens to pick them up. This is the Go realization of the
// asio strand preferred by the design notes: a mutex-guarded FIFO plus an
// idle/busy flag, scheduled onto the pool one drain at a time.
type Strand struct {
	pool *Pool

	mu   sync.Mutex
	jobs []func()
	busy bool
}

// NewStrand returns a Strand that schedules its drain loop onto pool.
func NewStrand(pool *Pool) *Strand {
	return &Strand{pool: pool}
}

// Post appends fn to the strand's queue. If the strand is currently idle,
// this also schedules a drain of the strand onto the pool.
func (s *Strand) Post(fn func()) {
	s.mu.Lock()
	s.jobs = append(s.jobs, fn)
	shouldSchedule := !s.busy
	if shouldSchedule {
		s.busy = true
	}
	s.mu.Unlock()

	if shouldSchedule {
		s.pool.Post(func(context.Context) { s.drain() })
	}
}

// drain runs queued jobs one at a time until the queue is empty, then marks
// the strand idle again. Because the idle->busy transition is guarded by
// the same mutex as Post's enqueue, at most one drain is ever scheduled at
// once, which is what prevents two Post-ed functions from ever running
// concurrently.
func (s *Strand) drain() {
	for {
		s.mu.Lock()
		if len(s.jobs) == 0 {
			s.busy = false
			s.mu.Unlock()
			return
		}
		fn := s.jobs[0]
		s.jobs[0] = nil
		s.jobs = s.jobs[1:]
		s.mu.Unlock()

		fn()
	}
}
