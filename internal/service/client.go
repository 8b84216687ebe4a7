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

package service

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/nansu0425/byteborneworld/internal/ioengine"
	"github.com/nansu0425/byteborneworld/internal/protoerr"
	"go.uber.org/zap"
)

// ResolveTarget names the host/service (port or service name) a Client
// resolves before connecting, matching the source's ResolveTarget.
type ResolveTarget struct {
	Host    string
	Service string
}

// Client resolves a target and opens connectCount independent TCP
// connections to it, emitting one Connect event per successfully
// established socket.
type Client struct {
	target       ResolveTarget
	connectCount int
	pool         *ioengine.Pool
	strand       *ioengine.Strand
	log          *zap.Logger
	events       *EventQueue

	running   atomic.Bool
	closeOnce sync.Once

	// dialCtx is cancelled from stop(), independent of the pool's own
	// lifetime context, so an in-flight LookupHost/DialContext is unblocked
	// the moment the client is asked to stop rather than waiting for a
	// connection that may never complete — mirroring the source's
	// ClientService::close() cancelling its resolver and sockets directly.
	dialCtx    context.Context
	cancelDial context.CancelFunc

	connsMu sync.Mutex
	conns   []net.Conn // established sockets, tracked so Close can shut them all down
}

// NewClient creates a Client that will resolve target and dial
// connectCount sockets on Start.
func NewClient(target ResolveTarget, connectCount int, pool *ioengine.Pool, events *EventQueue, log *zap.Logger) *Client {
	if connectCount <= 0 {
		connectCount = 1
	}
	return &Client{
		target:       target,
		connectCount: connectCount,
		pool:         pool,
		strand:       ioengine.NewStrand(pool),
		log:          log,
		events:       events,
	}
}

// Start posts an asynchronous resolve, after which connectCount independent
// connect attempts are issued. The supplied ctx only seeds the client's own
// cancelable dial context; Stop (not ctx's cancellation) is what normally
// unblocks any operation still in flight.
func (c *Client) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.dialCtx, c.cancelDial = context.WithCancel(ctx)
	c.strand.Post(c.resolve)
}

func (c *Client) resolve() {
	if !c.running.Load() {
		return
	}
	dialCtx := c.dialCtx
	c.pool.Spawn(func(ctx context.Context) {
		addrs, err := net.DefaultResolver.LookupHost(dialCtx, c.target.Host)
		c.strand.Post(func() {
			c.onResolved(addrs, err)
		})
	})
}

func (c *Client) onResolved(addrs []string, err error) {
	if err != nil {
		c.handleError(err)
		return
	}
	if len(addrs) == 0 {
		c.handleError(errNoSuchHost{})
		return
	}
	addr := net.JoinHostPort(addrs[0], c.target.Service)
	for i := 0; i < c.connectCount; i++ {
		c.connect(addr)
	}
}

func (c *Client) connect(addr string) {
	if !c.running.Load() {
		return
	}
	dialCtx := c.dialCtx
	c.pool.Spawn(func(ctx context.Context) {
		var d net.Dialer
		conn, err := d.DialContext(dialCtx, "tcp", addr)
		c.strand.Post(func() {
			c.onConnected(conn, err)
		})
	})
}

func (c *Client) onConnected(conn net.Conn, err error) {
	if err != nil {
		c.handleError(err)
		return
	}
	if !c.running.Load() {
		// Stop() ran while the dial was already in flight and about to
		// succeed; don't resurrect a connection or emit a Connect event
		// past shutdown.
		conn.Close()
		return
	}
	c.connsMu.Lock()
	c.conns = append(c.conns, conn)
	c.connsMu.Unlock()
	c.events.Push(Event{Kind: Connect, Conn: conn})
}

type errNoSuchHost struct{}

func (errNoSuchHost) Error() string { return "no such host" }

// handleError classifies a resolve/connect-time error. A benign close (the
// client's own cancellation) is logged at debug level. Every other error,
// host/service-not-found, connection refused, timeout and
// network-unreachable included, is logged and stops the whole client, not
// just one socket; no error ends only the failing attempt.
func (c *Client) handleError(err error) {
	switch {
	case protoerr.IsBenignClose(err):
		c.log.Debug("service: client stopped mid-connect", zap.Error(err))
	default:
		c.log.Error("service: resolve/connect failed", zap.Error(err))
		c.Stop()
	}
}

// Stop tears the client down: stops issuing new connects and closes every
// socket already established, emitting exactly one Close event.
func (c *Client) Stop() {
	c.strand.Post(c.stop)
}

func (c *Client) stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.closeOnce.Do(func() {
		if c.cancelDial != nil {
			// Unblocks any LookupHost/DialContext still in flight — there is
			// no conn/listener yet to close for a pending dial, so this is
			// the only way to abort it, mirroring the source's
			// ClientService::close() cancelling its resolver and sockets.
			c.cancelDial()
		}
		var agg protoerr.Aggregator
		c.connsMu.Lock()
		conns := c.conns
		c.conns = nil
		c.connsMu.Unlock()
		for _, conn := range conns {
			agg.Add(conn.Close())
		}
		if err := agg.Err(); err != nil {
			c.log.Debug("service: error while closing client sockets", zap.Error(err))
		}
		c.events.Push(Event{Kind: Close})
	})
}

// IsRunning reports whether the client is still active.
func (c *Client) IsRunning() bool {
	return c.running.Load()
}
