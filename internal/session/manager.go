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

import "github.com/nansu0425/byteborneworld/internal/netbuf"

// Manager is a plain map of live sessions, touched exclusively from the
// application loop's own goroutine — it is deliberately not internally
// synchronized, matching spec.md §4.7: the source's SessionManager is a
// bare unordered_map because only the single-threaded app loop ever reads
// or writes it.
type Manager struct {
	sessions map[ID]*Session
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[ID]*Session)}
}

// Add registers s. Panics if a session with the same id is already
// registered — this should be structurally impossible given id's
// monotonic allocation.
func (m *Manager) Add(s *Session) {
	if _, exists := m.sessions[s.ID()]; exists {
		panic("session: duplicate session id added to Manager")
	}
	m.sessions[s.ID()] = s
}

// Remove drops id from the registry, if present.
func (m *Manager) Remove(id ID) {
	delete(m.sessions, id)
}

// Find returns the session for id, if any.
func (m *Manager) Find(id ID) (*Session, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

// Has reports whether id is currently registered.
func (m *Manager) Has(id ID) bool {
	_, ok := m.sessions[id]
	return ok
}

// IsEmpty reports whether no sessions are registered.
func (m *Manager) IsEmpty() bool {
	return len(m.sessions) == 0
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	return len(m.sessions)
}

// Send delivers chunk to the session for id, returning false if no such
// session is registered or it is no longer running.
func (m *Manager) Send(id ID, chunk netbuf.Chunk) bool {
	s, ok := m.sessions[id]
	if !ok || !s.IsRunning() {
		return false
	}
	s.Send(chunk)
	return true
}

// Broadcast sends a clone of chunk to every registered, running session.
func (m *Manager) Broadcast(chunk netbuf.Chunk) {
	for _, s := range m.sessions {
		if s.IsRunning() {
			s.Send(chunk.Clone())
		}
	}
}

// BroadcastTo sends a clone of chunk to every registered, running session
// whose id is in ids.
func (m *Manager) BroadcastTo(ids []ID, chunk netbuf.Chunk) {
	for _, id := range ids {
		if s, ok := m.sessions[id]; ok && s.IsRunning() {
			s.Send(chunk.Clone())
		}
	}
}

// StopAll requests every registered session stop. Sessions remove
// themselves from the Manager only once their Close event is processed by
// the application loop.
func (m *Manager) StopAll() {
	for _, s := range m.sessions {
		s.Stop()
	}
}
