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

import (
	"fmt"

	"go.uber.org/atomic"
)

// DefaultSendSize is the default slab size used by SendBuffer, matching
// the source's default.
const DefaultSendSize = 4096

// SendBuffer is one slab of outbound bytes. At most one SendBufferChunk may
// be open against a given SendBuffer at a time; Open panics if called while
// a chunk is already open, mirroring the source's single-writer assertion.
type SendBuffer struct {
	buf    []byte
	offset int // bytes permanently committed ("closed") so far
	closed bool
	pin    atomic.Int32 // outstanding chunk references; slab is kept alive by Go's GC regardless, this models explicit lifetime for tests
}

// NewSendBuffer allocates a slab of the given size (DefaultSendSize if <=0).
func NewSendBuffer(size int) *SendBuffer {
	if size <= 0 {
		size = DefaultSendSize
	}
	b := &SendBuffer{buf: make([]byte, size), closed: true}
	return b
}

// FreeSize returns the number of bytes still available to reserve.
func (b *SendBuffer) FreeSize() int {
	return len(b.buf) - b.offset
}

// Open reserves size bytes for a new chunk and returns it. It panics if a
// chunk is already open or size exceeds the remaining free space, matching
// the source's assertions — callers (SendBufferManager) are expected to
// have already checked FreeSize.
func (b *SendBuffer) Open(size int) *SendBufferChunk {
	if !b.closed {
		panic("netbuf: SendBuffer.Open called while a chunk is already open")
	}
	if size > b.FreeSize() {
		panic(fmt.Sprintf("netbuf: SendBuffer.Open(%d) exceeds free size %d", size, b.FreeSize()))
	}
	b.closed = false
	b.pin.Inc()
	return &SendBufferChunk{
		owner:    b,
		base:     b.offset,
		reserved: size,
	}
}

// close is invoked by SendBufferChunk.Close and advances the slab's
// committed offset by the number of bytes actually written — the "pay only
// for what you wrote" behavior adopted from the redesign flag in place of
// advancing by the full reservation.
func (b *SendBuffer) close(written int) {
	b.offset += written
	b.closed = true
}

func (b *SendBuffer) release() {
	b.pin.Dec()
}

// SendBufferChunk is a single in-progress or closed reservation inside a
// SendBuffer's slab. Chunks are cloned (via Clone) to share one encoded
// packet across a broadcast send without recopying the payload.
type SendBufferChunk struct {
	owner    *SendBuffer
	base     int
	reserved int
	writeOff int
	closed   bool
}

// UnwrittenSize returns how much of the reservation remains writable.
func (c *SendBufferChunk) UnwrittenSize() int {
	return c.reserved - c.writeOff
}

// Write appends p to the chunk, panicking if it would overflow the
// reservation or the chunk is already closed.
func (c *SendBufferChunk) Write(p []byte) {
	if c.closed {
		panic("netbuf: Write on a closed SendBufferChunk")
	}
	if len(p) > c.UnwrittenSize() {
		panic("netbuf: SendBufferChunk.Write overflows reservation")
	}
	copy(c.owner.buf[c.base+c.writeOff:], p)
	c.writeOff += len(p)
}

// Close finalizes the chunk, committing only the bytes actually written
// (c.writeOff, not the original reservation) back to the owning slab.
func (c *SendBufferChunk) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.owner.close(c.writeOff)
}

// Bytes returns the committed, written portion of the chunk. Valid only
// after Close.
func (c *SendBufferChunk) Bytes() []byte {
	return c.owner.buf[c.base : c.base+c.writeOff]
}

// Chunk is a lightweight, shareable handle to a closed SendBufferChunk,
// the unit actually queued on a Session's outbound queue and fanned out
// across a broadcast. Cloning increments the owning slab's pin so tests can
// assert a slab is not reused while any clone is outstanding.
type Chunk struct {
	chunk *SendBufferChunk
}

// NewChunk wraps a closed SendBufferChunk.
func NewChunk(c *SendBufferChunk) Chunk {
	return Chunk{chunk: c}
}

// Bytes returns the wire bytes of this chunk (header + payload).
func (c Chunk) Bytes() []byte {
	return c.chunk.Bytes()
}

// Clone returns an independent handle to the same underlying bytes,
// pinning the owning slab for the clone's lifetime.
func (c Chunk) Clone() Chunk {
	c.chunk.owner.pin.Inc()
	return c
}

// Release drops this handle's pin on the owning slab. Safe to call once
// per handle obtained from NewChunk or Clone.
func (c Chunk) Release() {
	c.chunk.owner.release()
}
