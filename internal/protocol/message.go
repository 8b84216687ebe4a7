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

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Message is implemented by every typed application payload. Concrete
// messages are plain structs with cbor struct tags, encoded/decoded via
// github.com/fxamacker/cbor/v2, the self-describing structured encoding
// standing in for the source's protobuf payloads.
type Message interface {
	MessageType() MessageType
}

// Factory constructs a zero-valued, decodable Message for a given
// MessageType.
type Factory struct {
	ctors map[MessageType]func() Message
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[MessageType]func() Message)}
}

// Register associates id with a constructor. Re-registering the same id
// replaces the previous constructor.
func (f *Factory) Register(id MessageType, ctor func() Message) {
	f.ctors[id] = ctor
}

// Create returns a new zero-valued message for id, or nil if id is
// unregistered.
func (f *Factory) Create(id MessageType) Message {
	ctor, ok := f.ctors[id]
	if !ok {
		return nil
	}
	return ctor()
}

// SessionID identifies the originating/destination session for a queued
// message entry, decoupled from internal/session to avoid an import cycle.
type SessionID uint64

// Entry pairs a decoded message with the session it arrived from.
type Entry struct {
	SessionID SessionID
	Type      MessageType
	Message   Message
}

// Handler processes one dispatched Entry.
type Handler func(sessionID SessionID, msg Message)

func decode(factory *Factory, view View) (Message, error) {
	msg := factory.Create(view.Header.ID)
	if msg == nil {
		return nil, fmt.Errorf("protocol: no factory registered for message type %d", view.Header.ID)
	}
	if err := cbor.Unmarshal(view.Payload, msg); err != nil {
		return nil, fmt.Errorf("protocol: decode message type %d: %w", view.Header.ID, err)
	}
	return msg, nil
}

func encode(msg Message) ([]byte, error) {
	return cbor.Marshal(msg)
}
