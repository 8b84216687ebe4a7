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

	"github.com/nansu0425/byteborneworld/internal/netbuf"
)

// Serializer encodes a Message into a framed, ready-to-send netbuf.Chunk.
type Serializer struct {
	buffers       *netbuf.SendBufferManager
	maxPacketSize int
}

// NewSerializer builds a Serializer that draws chunks from buffers and
// refuses to frame a message whose encoded size would exceed
// maxPacketSize (DefaultMaxPacketSize if <= 0) — the upper-bound guard
// spec.md §9 requires and the source lacks.
func NewSerializer(buffers *netbuf.SendBufferManager, maxPacketSize int) *Serializer {
	if maxPacketSize <= 0 {
		maxPacketSize = DefaultMaxPacketSize
	}
	return &Serializer{buffers: buffers, maxPacketSize: maxPacketSize}
}

// Serialize encodes msg and returns a closed, ready-to-queue Chunk.
func (s *Serializer) Serialize(msg Message) (netbuf.Chunk, error) {
	payload, err := encode(msg)
	if err != nil {
		return netbuf.Chunk{}, fmt.Errorf("protocol: encode message type %d: %w", msg.MessageType(), err)
	}

	total := HeaderSize + len(payload)
	if total > s.maxPacketSize {
		return netbuf.Chunk{}, fmt.Errorf("protocol: encoded message type %d is %d bytes, exceeds max packet size %d",
			msg.MessageType(), total, s.maxPacketSize)
	}

	raw := s.buffers.Open(total)
	header := Header{Size: uint16(total), ID: msg.MessageType()}
	hdr := make([]byte, HeaderSize)
	header.Encode(hdr)
	raw.Write(hdr)
	raw.Write(payload)
	raw.Close()

	return netbuf.NewChunk(raw), nil
}
