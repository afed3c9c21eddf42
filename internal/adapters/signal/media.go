package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

func (ctl *Controller) handleRouterCapabilities(conn *wsSignalConn, env envelope) {
	ctl.reply(conn, env, ctl.Orch.RouterRtpCapabilities())
}

func (ctl *Controller) handleCreateTransport(ctx context.Context, pid domain.PeerID, conn *wsSignalConn, env envelope) {
	info, err := ctl.Orch.CreateTransport(ctx, pid)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("peer", string(pid)).Msg("create transport")
		ctl.replyErr(conn, env, err)
		return
	}
	ctl.reply(conn, env, info)
}

func (ctl *Controller) handleConnectTransport(ctx context.Context, pid domain.PeerID, conn *wsSignalConn, env envelope) {
	type connectPayload struct {
		TransportID string `json:"transportId"`
		core.ConnectParams
	}
	var p connectPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad connectTransport payload")
		ctl.replyErr(conn, env, err)
		return
	}
	if err := ctl.Orch.ConnectTransport(ctx, pid, p.TransportID, p.ConnectParams); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("peer", string(pid)).Str("transport", p.TransportID).Msg("connect transport")
		ctl.replyErr(conn, env, err)
		return
	}
	ctl.reply(conn, env, struct{}{})
}

func (ctl *Controller) handleProduce(ctx context.Context, pid domain.PeerID, conn *wsSignalConn, env envelope) {
	type producePayload struct {
		TransportID   string               `json:"transportId"`
		Kind          domain.MediaKind     `json:"kind"`
		RTPParameters domain.RTPParameters `json:"rtpParameters"`
		NotifyPeerID  domain.PeerID        `json:"notifyPeerId,omitempty"`
	}
	var p producePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad produce payload")
		ctl.replyErr(conn, env, err)
		return
	}

	producerID, err := ctl.Orch.Produce(ctx, pid, p.TransportID, p.Kind, p.RTPParameters)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("peer", string(pid)).Str("kind", string(p.Kind)).Msg("produce")
		ctl.replyErr(conn, env, err)
		return
	}

	// Producer replacement protocol: the call peer re-consumes the new
	// producer id; its consumer state is never touched from here.
	if p.NotifyPeerID != "" {
		ctl.eventTo(p.NotifyPeerID, "producer-replaced", struct {
			Kind             domain.MediaKind `json:"kind"`
			ProducerID       string           `json:"producerId"`
			ProducerSocketID domain.PeerID    `json:"producerSocketId"`
		}{Kind: p.Kind, ProducerID: producerID, ProducerSocketID: pid})
	}

	ctl.reply(conn, env, struct {
		ID string `json:"id"`
	}{ID: producerID})
}

func (ctl *Controller) handleGetProducer(conn *wsSignalConn, env envelope) {
	type getProducerPayload struct {
		TargetID domain.PeerID `json:"targetId"`
	}
	var p getProducerPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad getProducer payload")
		ctl.replyErr(conn, env, err)
		return
	}

	ids, ok := ctl.Orch.Producers(p.TargetID)
	if !ok {
		// Unknown target is a null result, not an error; the caller
		// polls until the remote side has produced.
		ctl.reply(conn, env, nil)
		return
	}
	ctl.reply(conn, env, struct {
		Video string `json:"video,omitempty"`
		Audio string `json:"audio,omitempty"`
	}{Video: ids[domain.KindVideo], Audio: ids[domain.KindAudio]})
}

func (ctl *Controller) handleConsume(ctx context.Context, pid domain.PeerID, conn *wsSignalConn, env envelope) {
	type consumePayload struct {
		TransportID     string                 `json:"transportId"`
		ProducerID      string                 `json:"producerId"`
		RTPCapabilities domain.RTPCapabilities `json:"rtpCapabilities"`
	}
	var p consumePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad consume payload")
		ctl.replyErr(conn, env, err)
		return
	}

	res, err := ctl.Orch.Consume(ctx, pid, p.TransportID, p.ProducerID, p.RTPCapabilities)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("peer", string(pid)).Str("producer", p.ProducerID).Msg("consume")
		ctl.replyErr(conn, env, err)
		return
	}
	ctl.reply(conn, env, res)
}
