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

// Package protocol implements the wire framing and the typed message
// pipeline: factory, queue, dispatcher and serializer layered on top of
// internal/netbuf's receive/send buffers.
package protocol

import "encoding/binary"

// HeaderSize is the fixed 4-byte wire header: a little-endian uint16 total
// packet size (header included) followed by a little-endian uint16 message
// type id.
const HeaderSize = 4

// DefaultMaxPacketSize is the ceiling spec.md §9 requires and the source
// lacks: a header claiming more than this many bytes is a framing
// violation, not merely a large packet.
const DefaultMaxPacketSize = 65535

// MessageType identifies the payload carried after the header.
type MessageType uint16

// Reserved message types, matching the original worked example's wire
// constants exactly.
const (
	None    MessageType = 0
	S2CChat MessageType = 1000
	C2SChat MessageType = 2000
)

// Header is the 4-byte packet header.
type Header struct {
	Size uint16 // total packet size, header included
	ID   MessageType
}

// Encode writes the header in wire format (little-endian) into dst, which
// must be at least HeaderSize bytes.
func (h Header) Encode(dst []byte) {
	binary.LittleEndian.PutUint16(dst[0:2], h.Size)
	binary.LittleEndian.PutUint16(dst[2:4], uint16(h.ID))
}

// DecodeHeader reads a Header from the front of src, which must be at
// least HeaderSize bytes.
func DecodeHeader(src []byte) Header {
	return Header{
		Size: binary.LittleEndian.Uint16(src[0:2]),
		ID:   MessageType(binary.LittleEndian.Uint16(src[2:4])),
	}
}

// View is a borrowed reference into a ReceiveBuffer: a fully-framed packet
// (header + payload), valid only until the buffer is next compacted or the
// bytes are popped.
type View struct {
	Header  Header
	Payload []byte
}
