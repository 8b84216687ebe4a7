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
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/nansu0425/byteborneworld/internal/ioengine"
	"github.com/nansu0425/byteborneworld/internal/netbuf"
	"github.com/nansu0425/byteborneworld/internal/protocol"
	"github.com/nansu0425/byteborneworld/internal/protoerr"
	"go.uber.org/zap"
)

var nextID uint64 // atomic, monotonic from 1 across the whole process

// Session owns one TCP connection, a receive buffer and an outbound chunk
// queue, and serializes every operation against them through a Strand —
// the Go analogue of the source's Session bound to an asio strand.
type Session struct {
	id      ID
	conn    net.Conn
	strand  *ioengine.Strand
	pool    *ioengine.Pool
	log     *zap.Logger
	events  *EventQueue
	maxSize int

	running atomic.Bool
	closeOnce sync.Once

	recvBuf *netbuf.ReceiveBuffer

	sendMu    sync.Mutex
	sendQueue []netbuf.Chunk
	writing   bool
}

// New creates a Session over conn, issuing the next monotonic id. The
// session is not yet started — call Start.
func New(conn net.Conn, pool *ioengine.Pool, events *EventQueue, log *zap.Logger, maxPacketSize int) *Session {
	if maxPacketSize <= 0 {
		maxPacketSize = protocol.DefaultMaxPacketSize
	}
	id := ID(atomic.AddUint64(&nextID, 1))
	return &Session{
		id:      id,
		conn:    conn,
		strand:  ioengine.NewStrand(pool),
		pool:    pool,
		log:     log.With(zap.Uint64("session_id", uint64(id))),
		events:  events,
		maxSize: maxPacketSize,
		recvBuf: netbuf.NewReceiveBuffer(netbuf.DefaultReceiveSize, netbuf.DefaultCapacityFactor),
	}
}

// ID returns the session's id.
func (s *Session) ID() ID { return s.id }

// Start begins the read loop. Idempotent: calling Start twice has no
// additional effect.
func (s *Session) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.Receive()
}

// Receive posts one more read iteration. The application loop calls this
// after consuming every packet currently buffered, to re-arm reading —
// mirroring the source's explicit receive()/re-arm discipline.
func (s *Session) Receive() {
	s.strand.Post(func() {
		if !s.running.Load() {
			return
		}
		s.pool.Spawn(func(ctx context.Context) {
			dst := s.recvBuf.WritableSlice()
			n, err := s.conn.Read(dst)
			s.strand.Post(func() {
				s.onRead(n, err)
			})
		})
	})
}

func (s *Session) onRead(n int, err error) {
	if n > 0 {
		s.recvBuf.OnWritten(n)
		if s.recvBuf.Len() >= protocol.HeaderSize {
			hdr := protocol.DecodeHeader(s.recvBuf.UnreadSlice())
			if int(hdr.Size) < protocol.HeaderSize || int(hdr.Size) > s.maxSize {
				s.log.Error("session: framing violation, packet size out of range",
					zap.Int("claimed_size", int(hdr.Size)), zap.Int("max_size", s.maxSize))
				s.stop()
				return
			}
		}
		s.events.Push(Event{Kind: Receive, ID: s.id})
	}
	if err != nil {
		s.handleError(err)
		return
	}
	if n > 0 {
		// Do not re-arm here: the application loop calls Receive again after
		// draining packets, which it will do upon observing the Receive
		// event above. Arming here too would race with that re-arm, so we
		// stop and let the event-driven Receive() call take over.
		return
	}
	// n == 0, err == nil: spurious wake-up, re-arm directly.
	s.Receive()
}

// FrontPacket returns the oldest fully-buffered packet, if any.
func (s *Session) FrontPacket() (protocol.View, bool) {
	unread := s.recvBuf.UnreadSlice()
	if len(unread) < protocol.HeaderSize {
		return protocol.View{}, false
	}
	hdr := protocol.DecodeHeader(unread)
	if len(unread) < int(hdr.Size) {
		return protocol.View{}, false
	}
	return protocol.View{Header: hdr, Payload: unread[protocol.HeaderSize:hdr.Size]}, true
}

// PopFrontPacket discards the oldest fully-buffered packet, compacting as
// internal/netbuf sees fit.
func (s *Session) PopFrontPacket() {
	view, ok := s.FrontPacket()
	if !ok {
		return
	}
	s.recvBuf.OnRead(int(view.Header.Size))
}

// Send enqueues chunk for writing and kicks off the writer if it was idle.
// chunk may be shared (via netbuf.Chunk.Clone) across multiple sessions
// for a broadcast without recopying the payload.
func (s *Session) Send(chunk netbuf.Chunk) {
	s.strand.Post(func() {
		if !s.running.Load() {
			chunk.Release()
			return
		}
		s.sendMu.Lock()
		s.sendQueue = append(s.sendQueue, chunk)
		kick := !s.writing
		if kick {
			s.writing = true
		}
		s.sendMu.Unlock()
		if kick {
			s.writeNext()
		}
	})
}

func (s *Session) writeNext() {
	s.sendMu.Lock()
	if len(s.sendQueue) == 0 {
		s.writing = false
		s.sendMu.Unlock()
		return
	}
	chunk := s.sendQueue[0]
	s.sendQueue = s.sendQueue[1:]
	s.sendMu.Unlock()

	s.pool.Spawn(func(ctx context.Context) {
		_, err := s.conn.Write(chunk.Bytes())
		chunk.Release()
		s.strand.Post(func() {
			if err != nil {
				s.handleError(err)
				return
			}
			s.writeNext()
		})
	})
}

// handleError classifies err per protoerr and acts accordingly, mirroring
// the source's Session::handleError switch.
func (s *Session) handleError(err error) {
	switch {
	case protoerr.IsBenignClose(err):
		s.log.Debug("session: benign close during teardown", zap.Error(err))
	case protoerr.IsPeerClosed(err), protoerr.IsTimeout(err):
		s.log.Debug("session: peer closed or timed out", zap.Error(err))
		s.stop()
	default:
		s.log.Error("session: unexpected I/O error", zap.Error(err))
		s.stop()
	}
}

// Stop idempotently tears the session down. Safe to call from any
// goroutine; the actual close runs on the strand.
func (s *Session) Stop() {
	s.strand.Post(s.stop)
}

func (s *Session) stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.closeOnce.Do(func() {
		var agg protoerr.Aggregator
		agg.Add(s.conn.Close())
		if err := agg.Err(); err != nil {
			s.log.Debug("session: error while closing connection", zap.Error(err))
		}
		s.events.Push(Event{Kind: Close, ID: s.id})
	})
}

// IsRunning reports whether the session is still active.
func (s *Session) IsRunning() bool {
	return s.running.Load()
}
