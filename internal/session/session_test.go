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

package session

import (
	"net"
	"testing"
	"time"

	"github.com/nansu0425/byteborneworld/internal/ioengine"
	"github.com/nansu0425/byteborneworld/internal/protocol"
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

func waitForEvent(t *testing.T, events *EventQueue, kind EventKind) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := events.Pop(); ok {
			if ev.Kind == kind {
				return ev
			}
			continue
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for event kind %v", kind)
	return Event{}
}

// TestSessionPartialFrameReassembly is scenario C: a packet arrives split
// across two TCP segments (3 bytes, then 5 bytes) and must only surface as
// a complete packet once fully buffered.
func TestSessionPartialFrameReassembly(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	pool := newTestPool(t)
	events := NewEventQueue()
	s := New(serverConn, pool, events, zap.NewNop(), 0)
	s.Start()
	defer s.Stop()

	wire := []byte{8, 0, 0xE8, 0x03, 'h', 'i', 0, 0} // size=8, id=1000, payload="hi" padded to 4 bytes
	go func() {
		clientConn.Write(wire[:3])
		time.Sleep(20 * time.Millisecond)
		clientConn.Write(wire[3:])
	}()

	waitForEvent(t, events, Receive)
	_, complete := s.FrontPacket()
	require.False(t, complete, "must not surface a packet until fully buffered")
	s.Receive() // app loop re-arms after draining (nothing to drain yet)

	waitForEvent(t, events, Receive)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := s.FrontPacket(); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	view, ok := s.FrontPacket()
	require.True(t, ok)
	require.Equal(t, protocol.MessageType(1000), view.Header.ID)
	require.Equal(t, []byte{'h', 'i', 0, 0}, view.Payload)
}

// TestSessionEmitsExactlyOneCloseEvent is Property 3: stopping a session
// five times in a row must still surface exactly one Close event.
func TestSessionEmitsExactlyOneCloseEvent(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	pool := newTestPool(t)
	events := NewEventQueue()
	s := New(serverConn, pool, events, zap.NewNop(), 0)
	s.Start()

	for i := 0; i < 5; i++ {
		s.Stop()
	}

	waitForEvent(t, events, Close)

	// Drain briefly to make sure no second Close event trickles in.
	time.Sleep(50 * time.Millisecond)
	for {
		ev, ok := events.Pop()
		if !ok {
			break
		}
		require.NotEqual(t, Close, ev.Kind, "must emit at most one Close event")
	}
}

func TestSessionRejectsOversizeHeader(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	pool := newTestPool(t)
	events := NewEventQueue()
	s := New(serverConn, pool, events, zap.NewNop(), 16) // tiny max packet size
	s.Start()

	go clientConn.Write([]byte{0xFF, 0xFF, 0, 0}) // claims a 65535-byte packet

	waitForEvent(t, events, Close)
	require.False(t, s.IsRunning())
}
