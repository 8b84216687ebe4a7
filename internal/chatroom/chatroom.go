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

package chatroom

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nansu0425/byteborneworld/internal/protocol"
	"github.com/nansu0425/byteborneworld/internal/session"
	"go.uber.org/zap"
)

// Room is the example broadcast chat handler: it owns no transport of its
// own, taking a session.Manager and a protocol.Serializer by reference,
// the same dependency-injected shape as the cleaner of the two source
// iterations (as opposed to the alternate iteration that embeds this logic
// directly inside the server's main type).
type Room struct {
	sessions *session.Manager
	ser      *protocol.Serializer
	log      *zap.Logger

	names       map[session.ID]string
	nextMsgID   atomic.Uint64
	nowMillisFn func() int64
}

// New creates a Room broadcasting over sessions via ser.
func New(sessions *session.Manager, ser *protocol.Serializer, log *zap.Logger) *Room {
	return &Room{
		sessions:    sessions,
		ser:         ser,
		log:         log,
		names:       make(map[session.ID]string),
		nowMillisFn: func() int64 { return time.Now().UnixMilli() },
	}
}

// OnClientAccepted assigns the new session a default display name. The
// source localizes this default; here it is plain ASCII since the chat
// feature is only a worked example, not a product surface.
func (r *Room) OnClientAccepted(id session.ID) {
	r.names[id] = fmt.Sprintf("player-%d", uint64(id))
}

// OnClientClosed forgets id's display name.
func (r *Room) OnClientClosed(id session.ID) {
	delete(r.names, id)
}

// RegisterHandlers wires C2SChat into dispatcher.
func (r *Room) RegisterHandlers(dispatcher *protocol.Dispatcher) {
	dispatcher.RegisterHandler(protocol.C2SChat, r.handleChat)
}

func (r *Room) handleChat(sessionID protocol.SessionID, msg protocol.Message) {
	req, ok := msg.(*C2SChat)
	if !ok {
		return
	}
	id := session.ID(sessionID)
	name, known := r.names[id]
	if !known {
		name = fmt.Sprintf("player-%d", uint64(id))
	}

	resp := &S2CChat{
		ServerMessageID: r.nextMsgID.Add(1),
		ClientMessageID: req.ClientMessageID,
		SenderSessionID: uint64(id),
		SenderName:      name,
		Content:         req.Content,
		ServerSentAtMS:  r.nowMillisFn(),
	}

	chunk, err := r.ser.Serialize(resp)
	if err != nil {
		r.log.Warn("chatroom: failed to serialize broadcast", zap.Error(err))
		return
	}
	r.sessions.Broadcast(chunk)
	chunk.Release()
}
