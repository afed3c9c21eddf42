package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

const writeWait = 5 * time.Second

// envelope frames every message in both directions. Requests carrying
// an id get exactly one reply with the same type and id, holding
// either data or error. Server-push events carry no id.
type envelope struct {
	Type  string          `json:"type"`
	ID    int64           `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

func (ctl *Controller) writePump(ctx context.Context, c *wsSignalConn) {
	var ping <-chan time.Time
	if ctl.PingPeriod > 0 {
		t := time.NewTicker(ctl.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, pid domain.PeerID, c *wsSignalConn) {
	defer log.Info().Str("module", "signal").Str("peer", string(pid)).Msg("readPump closing")

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	if ctl.PingPeriod > 0 {
		readWait := ctl.PingPeriod + writeWait
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(readWait))
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(ctx, pid, c, data)
		}
	}
}

func (ctl *Controller) dispatch(ctx context.Context, pid domain.PeerID, c *wsSignalConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "register":
		ctl.handleRegister(pid, c, env)
	case "get-users":
		ctl.handleGetUsers(c)
	case "call-user":
		ctl.handleCallUser(pid, env)
	case "answer-call":
		ctl.handleAnswerCall(pid, env)
	case "end-call":
		ctl.handleEndCall(pid, env)
	case "getRouterRtpCapabilities":
		ctl.handleRouterCapabilities(c, env)
	case "createWebRtcTransport":
		ctl.handleCreateTransport(ctx, pid, c, env)
	case "connectTransport":
		ctl.handleConnectTransport(ctx, pid, c, env)
	case "produce":
		ctl.handleProduce(ctx, pid, c, env)
	case "getProducer":
		ctl.handleGetProducer(c, env)
	case "consume":
		ctl.handleConsume(ctx, pid, c, env)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendEnvelope(c *wsSignalConn, env envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("envelope marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", env.Type).Msg("send dropped")
	}
}

// reply answers a correlated request with a data payload.
func (ctl *Controller) reply(c *wsSignalConn, env envelope, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", env.Type).Msg("reply marshal")
		return
	}
	ctl.sendEnvelope(c, envelope{Type: env.Type, ID: env.ID, Data: b})
}

// replyErr answers a correlated request with the failure reason.
func (ctl *Controller) replyErr(c *wsSignalConn, env envelope, err error) {
	ctl.sendEnvelope(c, envelope{Type: env.Type, ID: env.ID, Error: err.Error()})
}

// event pushes an uncorrelated server event.
func (ctl *Controller) event(c core.SignalConnection, typ string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", typ).Msg("event marshal")
		return
	}
	frame, err := json.Marshal(envelope{Type: typ, Data: b})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", typ).Msg("event envelope marshal")
		return
	}
	_ = c.TrySend(frame)
}

// eventTo delivers a push event to a peer by id, best-effort. Unknown
// or disconnected targets are silently dropped.
func (ctl *Controller) eventTo(target domain.PeerID, typ string, data any) {
	conn, ok := ctl.Orch.Registry.Signal(target)
	if !ok {
		log.Debug().Str("module", "signal").Str("target", string(target)).Str("type", typ).Msg("event target offline, dropped")
		return
	}
	ctl.event(conn, typ, data)
}
