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
	"testing"

	"github.com/nansu0425/byteborneworld/internal/netbuf"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testMsgType MessageType = 9001

type testMessage struct {
	Text string `cbor:"text"`
}

func (m *testMessage) MessageType() MessageType { return testMsgType }

func newTestFactory() *Factory {
	f := NewFactory()
	f.Register(testMsgType, func() Message { return &testMessage{} })
	return f
}

func TestFramingRoundTrip(t *testing.T) {
	mgr := netbuf.NewSendBufferManager(0)
	ser := NewSerializer(mgr, 0)

	chunk, err := ser.Serialize(&testMessage{Text: "hi"})
	require.NoError(t, err)

	wire := chunk.Bytes()
	hdr := DecodeHeader(wire)
	require.Equal(t, testMsgType, hdr.ID)
	require.Equal(t, int(hdr.Size), len(wire))

	view := View{Header: hdr, Payload: wire[HeaderSize:]}

	factory := newTestFactory()
	log := zap.NewNop()
	mq := NewMessageQueue(factory, log)
	mq.Push(1, view)

	entry, ok := mq.Pop()
	require.True(t, ok)
	require.Equal(t, SessionID(1), entry.SessionID)
	got := entry.Message.(*testMessage)
	require.Equal(t, "hi", got.Text)
}

func TestSerializeRejectsOversizePacket(t *testing.T) {
	mgr := netbuf.NewSendBufferManager(0)
	ser := NewSerializer(mgr, HeaderSize+4) // payload must fit in 4 bytes

	_, err := ser.Serialize(&testMessage{Text: "this text is far longer than four bytes"})
	require.Error(t, err)
}

func TestMessageQueueDropsUndecodablePacket(t *testing.T) {
	factory := newTestFactory()
	mq := NewMessageQueue(factory, zap.NewNop())

	// Unknown message type: no factory entry.
	mq.Push(1, View{Header: Header{Size: HeaderSize, ID: 4242}, Payload: nil})
	require.True(t, mq.IsEmpty(), "unknown message type must be dropped, not queued")

	// Known type but garbage payload that cbor cannot decode into the struct.
	mq.Push(1, View{Header: Header{Size: HeaderSize + 1, ID: testMsgType}, Payload: []byte{0xff}})
	require.True(t, mq.IsEmpty(), "undecodable payload must be dropped, not queued")
}

func TestDispatcherSkipsMissingHandler(t *testing.T) {
	d := NewDispatcher(zap.NewNop())
	require.False(t, d.HasHandler(testMsgType))

	// Must not panic.
	d.Dispatch(Entry{SessionID: 1, Type: testMsgType, Message: &testMessage{Text: "x"}})

	called := false
	d.RegisterHandler(testMsgType, func(sessionID SessionID, msg Message) { called = true })
	d.Dispatch(Entry{SessionID: 1, Type: testMsgType, Message: &testMessage{Text: "x"}})
	require.True(t, called)
}
