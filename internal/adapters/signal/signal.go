// Package signal is the websocket signaling adapter: one connection
// per peer, JSON envelopes, request/response correlation by id.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/app"
	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch *app.Orchestrator

	// ReadLimit and PingPeriod come from config; zero values fall
	// back to gorilla defaults / no pings.
	ReadLimit  int64
	PingPeriod time.Duration

	Invites *InviteRateLimiter
}

func NewController(orch *app.Orchestrator, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		Orch:       orch,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		Invites:    NewInviteRateLimiter(10, time.Minute),
	}
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

var _ core.SignalConnection = (*wsSignalConn)(nil)

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until the
// channel terminates for any reason, at which point every resource the
// peer owns is released and presence is rebroadcast.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	pid := domain.PeerID(uuid.NewString())
	log.Info().Str("module", "signal").Str("peer", string(pid)).
		Str("client_token", c.GetString("client_token")).
		Msg("new WS connection")

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctl.Orch.Registry.Add(pid, conn)

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go func() {
		defer cancel()
		ctl.readPump(connCtx, pid, conn)
		ctl.teardown(pid, conn)
	}()
}

// teardown is the cleanup supervisor entry point for this connection.
func (ctl *Controller) teardown(pid domain.PeerID, conn *wsSignalConn) {
	conn.Close()
	if ctl.Orch.Cleanup(pid) {
		ctl.broadcastUsers()
	}
	ctl.Invites.Forget(pid)
	log.Info().Str("module", "signal").Str("peer", string(pid)).Msg("connection torn down")
}
