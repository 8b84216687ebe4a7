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

// Command dummyclient opens several concurrent connections to a
// worldserver and exercises the chat room, the Go analogue of
// original_source/src/DummyClient/Client.cpp: it mirrors the server's own
// accept-side wiring on the connect side, down to the default of 10
// concurrent sockets against localhost:12345.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/nansu0425/byteborneworld/internal/apploop"
	"github.com/nansu0425/byteborneworld/internal/applog"
	"github.com/nansu0425/byteborneworld/internal/chatroom"
	"github.com/nansu0425/byteborneworld/internal/config"
	"github.com/nansu0425/byteborneworld/internal/ioengine"
	"github.com/nansu0425/byteborneworld/internal/netbuf"
	"github.com/nansu0425/byteborneworld/internal/protocol"
	"github.com/nansu0425/byteborneworld/internal/service"
	"github.com/nansu0425/byteborneworld/internal/session"
	"github.com/nansu0425/byteborneworld/internal/timer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var (
		host        string
		port        int
		connections int
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "dummyclient",
		Short: "Opens several connections to a worldserver and chats on each",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Defaults()
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}
			if connections != 0 {
				cfg.Connections = connections
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "localhost", "server host")
	cmd.Flags().IntVar(&port, "port", 12345, "server port")
	cmd.Flags().IntVar(&connections, "connections", 10, "number of concurrent sockets to open")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	log := applog.New(applog.Options{Level: cfg.LogLevel})
	defer log.Sync()

	pool := ioengine.NewPool(log, 4096)
	pool.Run(8)

	serviceEvents := service.NewEventQueue()
	sessionEvents := session.NewEventQueue()

	factory := protocol.NewFactory()
	chatroom.RegisterTypes(factory)
	messages := protocol.NewMessageQueue(factory, log)
	dispatcher := protocol.NewDispatcher(log)
	dispatcher.RegisterHandler(protocol.S2CChat, func(sessionID protocol.SessionID, msg protocol.Message) {
		reply := msg.(*chatroom.S2CChat)
		log.Info("dummyclient: received broadcast",
			zap.Uint64("session_id", uint64(sessionID)),
			zap.String("sender", reply.SenderName),
			zap.String("content", reply.Content))
	})

	sessions := session.NewManager()
	sendMgr := netbuf.NewSendBufferManager(0)
	ser := protocol.NewSerializer(sendMgr, cfg.MaxPacketSize)

	cli := service.NewClient(service.ResolveTarget{Host: cfg.Host, Service: strconv.Itoa(cfg.Port)}, cfg.Connections, pool, serviceEvents, log)
	cli.Start(context.Background())

	stopNotify := ioengine.NotifyStop(cli)
	defer stopNotify()

	var clientMsgID uint64
	greet := func(id session.ID) {
		clientMsgID++
		chunk, err := ser.Serialize(&chatroom.C2SChat{ClientMessageID: clientMsgID, Content: "hello from dummyclient"})
		if err != nil {
			log.Warn("dummyclient: failed to serialize greeting", zap.Error(err))
			return
		}
		sessions.Send(id, chunk)
	}

	loop := apploop.New(apploop.Config{
		Pool:            pool,
		ServiceEvents:   serviceEvents,
		Sessions:        sessions,
		SessionEvents:   sessionEvents,
		Messages:        messages,
		Dispatcher:      dispatcher,
		Timers:          timer.NewWheel(time.Now),
		Log:             log,
		TickInterval:    cfg.TickInterval,
		OnSessionAccept: greet,
		NewSession: func(conn net.Conn) *session.Session {
			return session.New(conn, pool, sessionEvents, log, cfg.MaxPacketSize)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			if !cli.IsRunning() {
				cancel()
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
	}()

	fmt.Printf("dummyclient: connecting %d socket(s) to %s:%d\n", cfg.Connections, cfg.Host, cfg.Port)
	loop.Run(ctx)
	pool.Join()
	log.Info("dummyclient: shut down cleanly")
	return nil
}
