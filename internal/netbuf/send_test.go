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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendBufferPaysOnlyForWhatYouWrote(t *testing.T) {
	b := NewSendBuffer(64)

	c := b.Open(32)
	c.Write([]byte("hi")) // only 2 bytes of the 32-byte reservation
	c.Close()

	// The slab should have advanced by 2, not by the 32-byte reservation.
	require.Equal(t, 62, b.FreeSize())
	require.Equal(t, []byte("hi"), c.Bytes())
}

func TestSendBufferOnlyOneOpenChunkAtATime(t *testing.T) {
	b := NewSendBuffer(64)
	b.Open(8)
	require.Panics(t, func() { b.Open(8) })
}

func TestSendBufferManagerRotatesSlabs(t *testing.T) {
	m := NewSendBufferManager(16)

	c1 := m.Open(10)
	c1.Write(make([]byte, 10))
	c1.Close()

	// Only 6 bytes free in the current slab; requesting 10 more must
	// allocate a fresh slab rather than panicking.
	c2 := m.Open(10)
	c2.Write(make([]byte, 10))
	c2.Close()

	require.Equal(t, 10, len(c1.Bytes()))
	require.Equal(t, 10, len(c2.Bytes()))
}

func TestChunkCloneSharesBytes(t *testing.T) {
	b := NewSendBuffer(32)
	c := b.Open(5)
	c.Write([]byte("hello"))
	c.Close()

	chunk := NewChunk(c)
	clone := chunk.Clone()
	require.Equal(t, chunk.Bytes(), clone.Bytes())
	chunk.Release()
	clone.Release()
}
