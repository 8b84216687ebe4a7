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

package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nansu0425/byteborneworld/internal/ioengine"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPool(t *testing.T) *ioengine.Pool {
	t.Helper()
	pool := ioengine.NewPool(zap.NewNop(), 64)
	pool.Run(4)
	t.Cleanup(func() {
		pool.Reset()
		pool.Join()
	})
	return pool
}

func drainFor(events *EventQueue, d time.Duration) []Event {
	var got []Event
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if ev, ok := events.Pop(); ok {
			got = append(got, ev)
		} else {
			time.Sleep(2 * time.Millisecond)
		}
	}
	return got
}

// TestServerAcceptAndClose starts a server's accept loop with no client
// connecting and checks that Stop yields exactly one Close event. The
// Accept event itself is checked by TestServerAcceptsRealConnection.
func TestServerAcceptAndClose(t *testing.T) {
	pool := newTestPool(t)
	events := NewEventQueue()
	srv := NewServer("127.0.0.1:0", pool, events, zap.NewNop())
	require.NoError(t, srv.Start(context.Background()))

	srv.Stop()
	evs := drainFor(events, 300*time.Millisecond)
	var closeCount int
	for _, ev := range evs {
		if ev.Kind == Close {
			closeCount++
		}
	}
	require.Equal(t, 1, closeCount)
}

// TestServerAcceptsRealConnection binds a fixed loopback port, dials it,
// and asserts exactly one Accept event carrying a usable connection.
func TestServerAcceptsRealConnection(t *testing.T) {
	pool := newTestPool(t)
	events := NewEventQueue()
	srv := NewServer("127.0.0.1:18453", pool, events, zap.NewNop())
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop()

	clientConn, err := net.Dial("tcp", "127.0.0.1:18453")
	require.NoError(t, err)
	defer clientConn.Close()

	evs := drainFor(events, 500*time.Millisecond)
	var acceptCount int
	for _, ev := range evs {
		if ev.Kind == Accept {
			acceptCount++
			require.NotNil(t, ev.Conn)
			ev.Conn.Close()
		}
	}
	require.Equal(t, 1, acceptCount)
}

// TestClientStopDuringConnectYieldsOneCloseNoConnect is scenario D:
// connecting to an address nothing listens on, Stop concurrently, and
// assert exactly one Close event with no Connect event ever surfacing.
func TestClientStopDuringConnectYieldsOneCloseNoConnect(t *testing.T) {
	pool := newTestPool(t)
	events := NewEventQueue()
	// Port 1 on loopback: connection refused almost immediately on most
	// systems, giving the race between the connect attempt and Stop.
	cli := NewClient(ResolveTarget{Host: "127.0.0.1", Service: "1"}, 4, pool, events, zap.NewNop())
	cli.Start(context.Background())
	cli.Stop()

	evs := drainFor(events, 500*time.Millisecond)
	var closeCount, connectCount int
	for _, ev := range evs {
		switch ev.Kind {
		case Close:
			closeCount++
		case Connect:
			connectCount++
			ev.Conn.Close()
		}
	}
	require.Equal(t, 1, closeCount)
	require.Equal(t, 0, connectCount)
}

// TestClientStopCancelsDialContext proves Stop actually unblocks an
// in-flight LookupHost/DialContext rather than merely closing sockets that
// already exist: resolving/dialing to port 1 is fast enough on most systems
// that a network-level race wouldn't reliably catch a missing cancellation,
// so this asserts directly on the client's own dial context instead.
func TestClientStopCancelsDialContext(t *testing.T) {
	pool := newTestPool(t)
	events := NewEventQueue()
	cli := NewClient(ResolveTarget{Host: "127.0.0.1", Service: "1"}, 1, pool, events, zap.NewNop())
	cli.Start(context.Background())
	require.NoError(t, cli.dialCtx.Err())

	cli.Stop()
	drainFor(events, 300*time.Millisecond)

	require.ErrorIs(t, cli.dialCtx.Err(), context.Canceled)
}
