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
	"github.com/nansu0425/byteborneworld/internal/queue"
	"go.uber.org/zap"
)

// MessageQueue decodes framed packet views into typed Entry values. Unlike
// the source, which asserts successful parsing and crashes the process on
// failure, a decode failure here is logged as a structured protocol error
// and the packet is simply dropped — the owning session is not stopped,
// per spec.md §7.
type MessageQueue struct {
	factory *Factory
	log     *zap.Logger
	q       *queue.Queue[Entry]
}

// NewMessageQueue returns a MessageQueue resolving message types via
// factory.
func NewMessageQueue(factory *Factory, log *zap.Logger) *MessageQueue {
	return &MessageQueue{factory: factory, log: log, q: queue.New[Entry]()}
}

// Push decodes view's payload and enqueues it under sessionID. A decode
// failure (unknown type or malformed payload) is logged and the packet is
// dropped — it never blocks or stops the session.
func (mq *MessageQueue) Push(sessionID SessionID, view View) {
	msg, err := decode(mq.factory, view)
	if err != nil {
		mq.log.Warn("protocol: dropping undecodable packet",
			zap.Uint64("session_id", uint64(sessionID)),
			zap.Uint16("message_type", uint16(view.Header.ID)),
			zap.Error(err),
		)
		return
	}
	mq.q.Push(Entry{SessionID: sessionID, Type: view.Header.ID, Message: msg})
}

// Pop removes and returns the oldest queued entry.
func (mq *MessageQueue) Pop() (Entry, bool) {
	return mq.q.Pop()
}

// IsEmpty reports whether the queue currently holds no entries.
func (mq *MessageQueue) IsEmpty() bool {
	return mq.q.IsEmpty()
}
