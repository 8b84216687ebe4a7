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

// Package timer implements a single-goroutine min-heap timer wheel:
// schedule-once, schedule-repeating and schedule-at tasks with
// cancellation, driven by repeated calls to Update from the application
// loop's own goroutine.
//
// Two bugs present in the source this was ported from are deliberately not
// reproduced: a repeating task keeps its original id across every
// reschedule (the source minted a fresh id each time to dodge a stale-
// cancel bug), and the live timer count is tracked directly rather than as
// heapLen - cancelledLen, which can undercount.
package timer

import (
	"container/heap"
	"time"
)

// ID identifies a scheduled task for cancellation purposes.
type ID uint64

// Callback is invoked when a task's deadline is reached. For a repeating
// task, its return value decides whether the task is rescheduled: true to
// keep going, false to stop after this firing.
type Callback func() bool

type task struct {
	id        ID
	deadline  time.Time
	interval  time.Duration // zero for a one-shot task
	repeating bool
	cb        Callback
	index     int // heap index, maintained by container/heap
}

type taskHeap []*task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *taskHeap) Push(x interface{}) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Wheel is a timer wheel. It is not safe for concurrent use — it is driven
// exclusively by the application loop's own goroutine, exactly as
// spec.md §4.7 requires for the session manager.
type Wheel struct {
	heap      taskHeap
	byID      map[ID]*task
	cancelled map[ID]struct{}
	nextID    ID
	now       func() time.Time
}

// NewWheel creates an empty timer wheel. now defaults to time.Now; tests
// may supply a fake clock.
func NewWheel(now func() time.Time) *Wheel {
	if now == nil {
		now = time.Now
	}
	return &Wheel{
		byID:      make(map[ID]*task),
		cancelled: make(map[ID]struct{}),
		now:       now,
	}
}

// ScheduleOnce runs cb once after d elapses.
func (w *Wheel) ScheduleOnce(d time.Duration, cb func()) ID {
	return w.schedule(w.now().Add(d), 0, false, func() bool { cb(); return false })
}

// ScheduleAt runs cb once at the given absolute time.
func (w *Wheel) ScheduleAt(at time.Time, cb func()) ID {
	return w.schedule(at, 0, false, func() bool { cb(); return false })
}

// ScheduleRepeating runs cb every interval, starting at now+interval. cb
// returns false to stop the repetition after that firing.
func (w *Wheel) ScheduleRepeating(interval time.Duration, cb Callback) ID {
	return w.schedule(w.now().Add(interval), interval, true, cb)
}

func (w *Wheel) schedule(deadline time.Time, interval time.Duration, repeating bool, cb Callback) ID {
	w.nextID++
	id := w.nextID
	t := &task{id: id, deadline: deadline, interval: interval, repeating: repeating, cb: cb}
	w.byID[id] = t
	heap.Push(&w.heap, t)
	return id
}

// Cancel prevents id from firing again. Safe to call for an id that has
// already fired (a one-shot) or does not exist. The id is retired from the
// live set immediately — TimerCount reflects the cancellation without
// waiting for the heap to pop the now-dead entry.
func (w *Wheel) Cancel(id ID) {
	if _, ok := w.byID[id]; !ok {
		return
	}
	delete(w.byID, id)
	w.cancelled[id] = struct{}{}
}

// Update fires every task whose deadline has elapsed, as of now(). A
// cancelled repeating task is dropped instead of rescheduled.
func (w *Wheel) Update() {
	now := w.now()
	for w.heap.Len() > 0 && !w.heap[0].deadline.After(now) {
		t := heap.Pop(&w.heap).(*task)

		if _, dead := w.cancelled[t.id]; dead {
			delete(w.cancelled, t.id)
			continue
		}

		keepGoing := t.cb()

		if !t.repeating || !keepGoing {
			delete(w.byID, t.id)
			continue
		}
		if _, dead := w.cancelled[t.id]; dead {
			delete(w.cancelled, t.id)
			continue
		}

		t.deadline = t.deadline.Add(t.interval)
		if t.deadline.Before(now) {
			t.deadline = now.Add(t.interval)
		}
		heap.Push(&w.heap, t)
	}
}

// TimerCount returns the number of currently live (not yet fired, not
// cancelled) tasks — tracked directly via byID rather than derived by
// subtracting a cancelled-set size from the heap length.
func (w *Wheel) TimerCount() int {
	return len(w.byID)
}
