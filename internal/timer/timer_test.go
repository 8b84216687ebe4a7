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

package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// TestRepeatingTimerFiresExactCount is scenario E: a 500ms repeating timer
// whose callback returns true,true,true,false fires exactly 4 times over
// 2.1s of simulated time, and TimerCount reaches zero afterwards.
func TestRepeatingTimerFiresExactCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	w := NewWheel(clock.Now)

	fireCount := 0
	results := []bool{true, true, true, false}
	id := w.ScheduleRepeating(500*time.Millisecond, func() bool {
		keepGoing := results[fireCount]
		fireCount++
		return keepGoing
	})
	require.Equal(t, 1, w.TimerCount())

	for i := 0; i < 21; i++ {
		clock.Advance(100 * time.Millisecond)
		w.Update()
	}

	require.Equal(t, 4, fireCount)
	require.Equal(t, 0, w.TimerCount())

	// id stayed stable across every reschedule — cancelling post-hoc after
	// natural completion is a harmless no-op, not a dangling stale id.
	w.Cancel(id)
}

func TestCancelPreventsRepeatingReschedule(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	w := NewWheel(clock.Now)

	fireCount := 0
	id := w.ScheduleRepeating(time.Second, func() bool {
		fireCount++
		return true
	})

	clock.Advance(time.Second)
	w.Update()
	require.Equal(t, 1, fireCount)
	require.Equal(t, 1, w.TimerCount())

	w.Cancel(id)
	require.Equal(t, 0, w.TimerCount())

	clock.Advance(time.Second)
	w.Update()
	require.Equal(t, 1, fireCount, "cancelled repeating timer must not fire again")
}

func TestScheduleOnceFiresOnceAndRetires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	w := NewWheel(clock.Now)

	fired := 0
	w.ScheduleOnce(time.Second, func() { fired++ })
	require.Equal(t, 1, w.TimerCount())

	clock.Advance(2 * time.Second)
	w.Update()
	require.Equal(t, 1, fired)
	require.Equal(t, 0, w.TimerCount())

	w.Update()
	require.Equal(t, 1, fired, "a fired one-shot must not fire again")
}

func TestTimerCountNeverUndercounts(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	w := NewWheel(clock.Now)

	var ids []ID
	for i := 0; i < 5; i++ {
		ids = append(ids, w.ScheduleOnce(time.Duration(i+1)*time.Second, func() {}))
	}
	require.Equal(t, 5, w.TimerCount())

	w.Cancel(ids[0])
	w.Cancel(ids[1])
	require.Equal(t, 3, w.TimerCount())

	clock.Advance(10 * time.Second)
	w.Update()
	require.Equal(t, 0, w.TimerCount())
}
