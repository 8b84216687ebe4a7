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

package netbuf

// SendBufferManager hands out SendBufferChunks, replacing its current slab
// with a fresh one whenever the current slab lacks the requested free
// space. One manager is expected per producer goroutine context (one per
// Session's strand, or one shared by an application loop for broadcast
// traffic authored outside any single session).
type SendBufferManager struct {
	current *SendBuffer
	slabSize int
}

// NewSendBufferManager creates a manager whose slabs are slabSize bytes
// (DefaultSendSize if <= 0).
func NewSendBufferManager(slabSize int) *SendBufferManager {
	if slabSize <= 0 {
		slabSize = DefaultSendSize
	}
	return &SendBufferManager{slabSize: slabSize}
}

// Open reserves size bytes, allocating a new slab first if the current one
// cannot satisfy the request. A request larger than slabSize gets a fresh
// slab of exactly size bytes.
func (m *SendBufferManager) Open(size int) *SendBufferChunk {
	if m.current == nil || m.current.FreeSize() < size {
		slab := m.slabSize
		if size > slab {
			slab = size
		}
		m.current = NewSendBuffer(slab)
	}
	return m.current.Open(size)
}
