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

package protocol

import "go.uber.org/zap"

// Dispatcher routes decoded Entry values to registered Handlers.
type Dispatcher struct {
	log      *zap.Logger
	handlers map[MessageType]Handler
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{log: log, handlers: make(map[MessageType]Handler)}
}

// RegisterHandler associates id with fn, replacing any previous handler.
func (d *Dispatcher) RegisterHandler(id MessageType, fn Handler) {
	d.handlers[id] = fn
}

// UnregisterHandler removes the handler for id, if any.
func (d *Dispatcher) UnregisterHandler(id MessageType) {
	delete(d.handlers, id)
}

// HasHandler reports whether a handler is registered for id.
func (d *Dispatcher) HasHandler(id MessageType) bool {
	_, ok := d.handlers[id]
	return ok
}

// Dispatch invokes the handler registered for entry.Type. A missing
// handler is logged and skipped — it is not a fatal condition, matching
// spec.md §4.6.
func (d *Dispatcher) Dispatch(entry Entry) {
	h, ok := d.handlers[entry.Type]
	if !ok {
		d.log.Warn("protocol: no handler registered for message type",
			zap.Uint16("message_type", uint16(entry.Type)))
		return
	}
	h(entry.SessionID, entry.Message)
}
