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

// Package chatroom is the worked example handler built on top of
// internal/protocol/internal/session: a broadcast chat room, presented
// only to exercise the transport — not the product itself.
package chatroom

import "github.com/nansu0425/byteborneworld/internal/protocol"

// C2SChat is sent by a client asking to say something in the room.
type C2SChat struct {
	ClientMessageID uint64 `cbor:"client_message_id"`
	Content         string `cbor:"content"`
}

// MessageType implements protocol.Message.
func (*C2SChat) MessageType() protocol.MessageType { return protocol.C2SChat }

// S2CChat is the authoritative broadcast the server sends in response to a
// C2SChat: the sender's display name and session id are server-assigned,
// never trusted from the client.
type S2CChat struct {
	ServerMessageID  uint64 `cbor:"server_message_id"`
	ClientMessageID  uint64 `cbor:"client_message_id"`
	SenderSessionID  uint64 `cbor:"sender_session_id"`
	SenderName       string `cbor:"sender_name"`
	Content          string `cbor:"content"`
	ServerSentAtMS   int64  `cbor:"server_sent_at_ms"`
}

// MessageType implements protocol.Message.
func (*S2CChat) MessageType() protocol.MessageType { return protocol.S2CChat }

// RegisterTypes wires C2SChat/S2CChat into factory so MessageQueue can
// decode incoming packets of either type.
func RegisterTypes(factory *protocol.Factory) {
	factory.Register(protocol.C2SChat, func() protocol.Message { return &C2SChat{} })
	factory.Register(protocol.S2CChat, func() protocol.Message { return &S2CChat{} })
}
