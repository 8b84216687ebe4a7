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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStrandSerializesPostedWork(t *testing.T) {
	pool := NewPool(zap.NewNop(), 64)
	pool.Run(4)
	defer func() {
		pool.Reset()
		pool.Join()
	}()

	s := NewStrand(pool)

	var (
		mu      sync.Mutex
		order   []int
		running int32
	)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		s.Post(func() {
			defer wg.Done()
			if atomic.AddInt32(&running, 1) != 1 {
				t.Errorf("strand allowed concurrent execution")
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&running, -1)

			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, order, 50)
	for i, v := range order {
		require.Equal(t, i, v, "strand must preserve post order")
	}
}

func TestPoolSpawnDoesNotBlockPool(t *testing.T) {
	pool := NewPool(zap.NewNop(), 4)
	pool.Run(1) // single bounded worker

	blockRelease := make(chan struct{})
	pool.Spawn(func(ctx context.Context) {
		<-blockRelease
	})

	done := make(chan struct{})
	pool.Post(func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bounded worker starved by a blocked Spawn goroutine")
	}
	close(blockRelease)
	pool.Reset()
	pool.Join()
}
