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

// Package apploop implements the fixed-tick application loop that drains
// service events, session events, the message queue and the timer wheel on
// a single goroutine — the one goroutine in the whole system allowed to
// touch internal/session's Manager and internal/timer's Wheel directly.
package apploop

import (
	"context"
	"net"
	"time"

	"github.com/nansu0425/byteborneworld/internal/ioengine"
	"github.com/nansu0425/byteborneworld/internal/protocol"
	"github.com/nansu0425/byteborneworld/internal/service"
	"github.com/nansu0425/byteborneworld/internal/session"
	"github.com/nansu0425/byteborneworld/internal/timer"
	"go.uber.org/zap"
)

// DefaultTickInterval is spec.md's default non-graphical tick: 50ms.
const DefaultTickInterval = 50 * time.Millisecond

// AcceptHandler is invoked once per accepted/connected socket, right after
// it is registered with the Manager and started, so it may already send on
// it — e.g. chatroom.Room.OnClientAccepted.
type AcceptHandler func(id session.ID)

// CloseHandler is invoked once per session when its Close event is
// processed, just before it is removed from the Manager — e.g.
// chatroom.Room.OnClientClosed.
type CloseHandler func(id session.ID)

// NewSessionFunc wraps a freshly accepted/connected net.Conn into a
// *session.Session. The loop never constructs sessions itself so it stays
// agnostic to whichever buffer sizes/queues the caller wants to use.
type NewSessionFunc func(conn net.Conn) *session.Session

// Loop ties a transport service, a session manager, the message pipeline
// and a timer wheel together at a fixed tick, mirroring
// original_source/src/WorldServer/Server.cpp's loop()/close() sequencing.
type Loop struct {
	pool          *ioengine.Pool
	serviceEvents *service.EventQueue
	sessions      *session.Manager
	sessionEvents *session.EventQueue
	messages      *protocol.MessageQueue
	dispatcher    *protocol.Dispatcher
	timers        *timer.Wheel
	log           *zap.Logger
	newSession    NewSessionFunc

	tick time.Duration

	onAccept AcceptHandler
	onClose  CloseHandler

	stopping  bool
	tickCount uint64
}

// Config collects Loop's dependencies.
type Config struct {
	Pool            *ioengine.Pool
	ServiceEvents   *service.EventQueue
	Sessions        *session.Manager
	SessionEvents   *session.EventQueue
	Messages        *protocol.MessageQueue
	Dispatcher      *protocol.Dispatcher
	Timers          *timer.Wheel
	Log             *zap.Logger
	NewSession      NewSessionFunc
	TickInterval    time.Duration
	OnSessionAccept AcceptHandler
	OnSessionClose  CloseHandler
}

// New builds a Loop from cfg, filling in defaults for zero-valued fields.
func New(cfg Config) *Loop {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Loop{
		pool:          cfg.Pool,
		serviceEvents: cfg.ServiceEvents,
		sessions:      cfg.Sessions,
		sessionEvents: cfg.SessionEvents,
		messages:      cfg.Messages,
		dispatcher:    cfg.Dispatcher,
		timers:        cfg.Timers,
		log:           cfg.Log,
		newSession:    cfg.NewSession,
		tick:          tick,
		onAccept:      cfg.OnSessionAccept,
		onClose:       cfg.OnSessionClose,
	}
}

// Run drives the loop on the calling goroutine until ctx is cancelled,
// draining every session to completion before returning — the Go
// equivalent of the source's loop() followed by close().
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	lastLogged := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.drainUntilEmpty()
			return
		case <-ticker.C:
			l.processServiceEvents()
			l.processSessionEvents()
			l.processMessages()
			l.timers.Update()
			l.tickCount++
			if time.Since(lastLogged) >= time.Second {
				l.log.Debug("apploop: tick",
					zap.Uint64("tick_count", l.tickCount),
					zap.Int("sessions", l.sessions.Len()),
					zap.Int("live_timers", l.timers.TimerCount()))
				lastLogged = time.Now()
			}
			if l.stopping && l.sessions.IsEmpty() {
				l.drainUntilEmpty()
				return
			}
		}
	}
}

func (l *Loop) processServiceEvents() {
	l.serviceEvents.DrainFunc(func(ev service.Event) {
		switch ev.Kind {
		case service.Close:
			l.stopping = true
		case service.Accept, service.Connect:
			s := l.newSession(ev.Conn)
			l.sessions.Add(s)
			s.Start()
			if l.onAccept != nil {
				l.onAccept(s.ID())
			}
			// A service.Close may already have raced this Accept/Connect
			// through the queue (server.go/client.go keep accepting right
			// up until their own Stop runs). Tear down any session admitted
			// after we've already started stopping, or drainUntilEmpty's
			// wait-for-empty loop would spin on a session nobody ever tells
			// to close.
			if l.stopping {
				s.Stop()
			}
		}
	})
}

func (l *Loop) processSessionEvents() {
	l.sessionEvents.DrainFunc(func(ev session.Event) {
		switch ev.Kind {
		case session.Close:
			if l.onClose != nil {
				l.onClose(ev.ID)
			}
			l.sessions.Remove(ev.ID)
		case session.Receive:
			s, ok := l.sessions.Find(ev.ID)
			if !ok {
				return
			}
			for {
				view, ok := s.FrontPacket()
				if !ok {
					break
				}
				l.messages.Push(protocol.SessionID(ev.ID), view)
				s.PopFrontPacket()
			}
			s.Receive()
		}
	})
}

func (l *Loop) processMessages() {
	for {
		entry, ok := l.messages.Pop()
		if !ok {
			return
		}
		l.dispatcher.Dispatch(entry)
	}
}

// drainUntilEmpty is the loop's close() equivalent: stop every session,
// keep processing session-close events until the manager is empty, then
// release the pool. l.stopping is forced true up front — reaching this
// method at all means ctx is already done, regardless of whether the
// transport's own service.Close event has made it through the queue yet —
// so any Accept/Connect still in flight gets admitted and immediately
// stopped by processServiceEvents instead of being left to run forever.
func (l *Loop) drainUntilEmpty() {
	l.stopping = true
	l.sessions.StopAll()
	for !l.sessions.IsEmpty() || !l.serviceEvents.IsEmpty() {
		l.processServiceEvents()
		l.processSessionEvents()
		time.Sleep(time.Millisecond)
	}
	l.pool.Reset()
}
