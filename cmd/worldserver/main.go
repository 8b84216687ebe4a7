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

// Command worldserver hosts the example chat room over the network core:
// accept connections, frame packets, dispatch decoded messages, and
// broadcast the authoritative reply — the Go analogue of
// original_source/src/WorldServer/Main.cpp.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
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
		configFile string
		host       string
		port       int
		logLevel   string
		logPath    string
	)

	cmd := &cobra.Command{
		Use:   "worldserver",
		Short: "Accepts connections and runs the example chat room",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logPath != "" {
				cfg.LogPath = logPath
			}
			return run(cfg, configFile)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&host, "host", "", "listen host (default 127.0.0.1)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default 12345)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	cmd.Flags().StringVar(&logPath, "log-path", "", "rotating log file path; empty disables the file sink")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config, configFile string) error {
	log := applog.New(applog.Options{Level: cfg.LogLevel, FilePath: cfg.LogPath})
	defer log.Sync()

	if err := config.WatchLogLevel(configFile, func(level string) {
		log.Info("worldserver: log level reload requested", zap.String("level", level))
	}); err != nil {
		log.Warn("worldserver: log level hot-reload disabled", zap.Error(err))
	}

	pool := ioengine.NewPool(log, 4096)
	pool.Run(8)

	serviceEvents := service.NewEventQueue()
	sessionEvents := session.NewEventQueue()

	factory := protocol.NewFactory()
	chatroom.RegisterTypes(factory)
	messages := protocol.NewMessageQueue(factory, log)
	dispatcher := protocol.NewDispatcher(log)

	sessions := session.NewManager()
	sendMgr := netbuf.NewSendBufferManager(0)
	ser := protocol.NewSerializer(sendMgr, cfg.MaxPacketSize)
	room := chatroom.New(sessions, ser, log)
	room.RegisterHandlers(dispatcher)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := service.NewServer(addr, pool, serviceEvents, log)
	if err := srv.Start(context.Background()); err != nil {
		return fmt.Errorf("worldserver: bind %s: %w", addr, err)
	}
	log.Info("worldserver: listening", zap.String("addr", addr))

	stopNotify := ioengine.NotifyStop(srv)
	defer stopNotify()

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
		OnSessionAccept: room.OnClientAccepted,
		OnSessionClose:  room.OnClientClosed,
		NewSession: func(conn net.Conn) *session.Session {
			return session.New(conn, pool, sessionEvents, log, cfg.MaxPacketSize)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			if !srv.IsRunning() {
				cancel()
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
	}()

	loop.Run(ctx)
	pool.Join()
	log.Info("worldserver: shut down cleanly")
	return nil
}
