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

// Package session implements Session and Manager: a single TCP connection
// wrapped in a strand-serialized reader/writer pair, and the application
// loop's single-goroutine registry of live sessions.
package session

import "github.com/nansu0425/byteborneworld/internal/queue"

// ID identifies a Session, issued monotonically starting at 1.
type ID uint64

// EventKind distinguishes the two kinds of session-level events the
// application loop consumes.
type EventKind int

const (
	// Receive signals that new bytes were read into the session's receive
	// buffer; Session.FrontPacket reports whether they complete a packet.
	Receive EventKind = iota
	// Close signals the session has fully torn down its socket and may be
	// removed from the Manager. Exactly one Close event is ever emitted
	// per session.
	Close
)

// Event is a single session-level occurrence, queued for the application
// loop to consume on its own goroutine.
type Event struct {
	Kind EventKind
	ID   ID
}

// EventQueue is the MPSC handoff from session strands to the application
// loop goroutine.
type EventQueue = queue.Queue[Event]

// NewEventQueue returns an empty EventQueue.
func NewEventQueue() *EventQueue {
	return queue.New[Event]()
}
