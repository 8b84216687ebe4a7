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

// Package service implements Server (accept-side) and Client (connect-
// side), both emitting Events consumed by the application loop.
package service

import (
	"net"

	"github.com/nansu0425/byteborneworld/internal/queue"
)

// EventKind distinguishes the service-level occurrences the application
// loop consumes.
type EventKind int

const (
	// Accept carries a freshly accepted connection (Server only).
	Accept EventKind = iota
	// Connect carries a freshly established connection (Client only).
	Connect
	// Close signals the service has fully torn down. Exactly one Close
	// event is ever emitted per service.
	Close
)

// Event is a single service-level occurrence.
type Event struct {
	Kind EventKind
	Conn net.Conn
}

// EventQueue is the MPSC handoff from service goroutines to the
// application loop.
type EventQueue = queue.Queue[Event]

// NewEventQueue returns an empty EventQueue.
func NewEventQueue() *EventQueue {
	return queue.New[Event]()
}
