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

// TestReceiveBufferCompactionStress is scenario F: S=16, F=4, 1000
// iterations of writing 10 bytes then reading 10 bytes, asserting the
// backing array never needs to grow beyond its initial physical capacity.
func TestReceiveBufferCompactionStress(t *testing.T) {
	b := NewReceiveBuffer(16, 4)
	initialCap := b.Cap()

	for i := 0; i < 1000; i++ {
		dst := b.WritableSlice()
		require.GreaterOrEqual(t, len(dst), 10)
		for j := 0; j < 10; j++ {
			dst[j] = byte(i + j)
		}
		b.OnWritten(10)
		require.Equal(t, 10, b.Len())

		got := append([]byte(nil), b.UnreadSlice()[:10]...)
		b.OnRead(10)
		for j := 0; j < 10; j++ {
			require.Equal(t, byte(i+j), got[j])
		}
		require.Equal(t, 0, b.Len())
	}

	require.Equal(t, initialCap, b.Cap(), "compaction alone must satisfy every iteration without growing")
}

func TestReceiveBufferPartialFrames(t *testing.T) {
	b := NewReceiveBuffer(DefaultReceiveSize, DefaultCapacityFactor)

	first := []byte{1, 2, 3}
	dst := b.WritableSlice()
	copy(dst, first)
	b.OnWritten(len(first))
	require.Equal(t, 3, b.Len())

	second := []byte{4, 5, 6, 7, 8}
	dst = b.WritableSlice()
	copy(dst, second)
	b.OnWritten(len(second))
	require.Equal(t, 8, b.Len())

	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, b.UnreadSlice())
	b.OnRead(8)
	require.Equal(t, 0, b.Len())
}

func TestReceiveBufferGrows(t *testing.T) {
	b := NewReceiveBuffer(4, 2)
	initialCap := b.Cap()

	// Fill the buffer without ever reading, so compaction cannot reclaim
	// space and a third write must grow the backing array.
	for i := 0; i < 2; i++ {
		dst := b.WritableSlice()
		require.GreaterOrEqual(t, len(dst), 4)
		b.OnWritten(4)
	}
	dst := b.WritableSlice()
	require.GreaterOrEqual(t, len(dst), 4)
	b.OnWritten(4)

	require.Greater(t, b.Cap(), initialCap)
	require.Equal(t, 12, b.Len())
}
