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
	"sync"
	"sync/atomic"

	"github.com/nansu0425/byteborneworld/internal/ioengine"
	"github.com/nansu0425/byteborneworld/internal/protoerr"
	"go.uber.org/zap"
)

// Server accepts inbound TCP connections and emits one Accept event per
// connection, re-arming the accept loop unconditionally — matching the
// source's Service::onAccepted, which re-arms even along the error path.
type Server struct {
	addr   string
	pool   *ioengine.Pool
	strand *ioengine.Strand
	log    *zap.Logger
	events *EventQueue

	running   atomic.Bool
	closeOnce sync.Once

	lnMu sync.Mutex
	ln   net.Listener
}

// NewServer creates a Server that will bind addr on Start.
func NewServer(addr string, pool *ioengine.Pool, events *EventQueue, log *zap.Logger) *Server {
	return &Server{
		addr:   addr,
		pool:   pool,
		strand: ioengine.NewStrand(pool),
		log:    log,
		events: events,
	}
}

// Start binds the listener and begins accepting. Returns once the bind
// succeeds or fails; acceptance itself proceeds asynchronously. Binding
// goes through net.ListenConfig so ctx can actually abort it (DNS-backed
// addresses can stall a plain net.Listen indefinitely).
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.lnMu.Lock()
	s.ln = ln
	s.lnMu.Unlock()

	s.armAccept()
	return nil
}

func (s *Server) armAccept() {
	s.strand.Post(func() {
		if !s.running.Load() {
			return
		}
		s.lnMu.Lock()
		ln := s.ln
		s.lnMu.Unlock()
		if ln == nil {
			return
		}
		s.pool.Spawn(func(ctx context.Context) {
			conn, err := ln.Accept()
			s.strand.Post(func() {
				s.onAccepted(conn, err)
			})
		})
	})
}

func (s *Server) onAccepted(conn net.Conn, err error) {
	if err == nil {
		s.events.Push(Event{Kind: Accept, Conn: conn})
	} else {
		s.handleError(err)
	}
	// Re-arm unconditionally, even on the error path, exactly as the
	// source's onAccepted does — a single transient accept error must not
	// stop the accept loop.
	if s.running.Load() {
		s.armAccept()
	}
}

// handleError classifies an accept-time error. Benign closes and
// peer-closed/timeout errors are logged at debug level (per the source's
// Service::handleError, connection_aborted/reset/timed_out are debug-only);
// every other error is logged at error level. No accept error stops the
// server: onAccepted re-arms while the server is running.
func (s *Server) handleError(err error) {
	switch {
	case protoerr.IsBenignClose(err):
		s.log.Debug("service: accept loop stopped", zap.Error(err))
	case protoerr.IsPeerClosed(err), protoerr.IsTimeout(err):
		s.log.Debug("service: transient accept error", zap.Error(err))
	default:
		s.log.Error("service: accept failed", zap.Error(err))
	}
}

// Stop tears the server down, closing the listener and emitting exactly
// one Close event.
func (s *Server) Stop() {
	s.strand.Post(s.stop)
}

func (s *Server) stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.closeOnce.Do(func() {
		var agg protoerr.Aggregator
		s.lnMu.Lock()
		ln := s.ln
		s.lnMu.Unlock()
		if ln != nil {
			agg.Add(ln.Close())
		}
		if err := agg.Err(); err != nil {
			s.log.Debug("service: error while closing listener", zap.Error(err))
		}
		s.events.Push(Event{Kind: Close})
	})
}

// IsRunning reports whether the server is still accepting.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// AsyncStart starts the server on its own goroutine and returns a channel
// that receives Start's result (nil or the bind error).
func (s *Server) AsyncStart(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	return done
}
