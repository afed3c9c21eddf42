package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/randutil"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

var ssrcGenerator = randutil.NewMathRandomGenerator()

type transport struct {
	engine *Engine
	id     string
	info   core.TransportInfo

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport

	mu        sync.Mutex
	connected bool
	closed    bool
}

var _ core.Transport = (*transport)(nil)

func (t *transport) ID() string               { return t.id }
func (t *transport) Info() core.TransportInfo { return t.info }

// Connect starts ICE (controlled role, we are the lite side) and DTLS
// from the client-supplied parameters. A second call is a no-op.
func (t *transport) Connect(ctx context.Context, params core.ConnectParams) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("transport closed")
	}
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	var iceParams webrtc.ICEParameters
	if len(params.ICEParameters) > 0 {
		if err := json.Unmarshal(params.ICEParameters, &iceParams); err != nil {
			return fmt.Errorf("ice parameters: %w", err)
		}
	}
	var dtlsParams webrtc.DTLSParameters
	if err := json.Unmarshal(params.DTLSParameters, &dtlsParams); err != nil {
		return fmt.Errorf("dtls parameters: %w", err)
	}

	role := webrtc.ICERoleControlled
	if err := t.ice.Start(t.gatherer, iceParams, &role); err != nil {
		return fmt.Errorf("ice start: %w", err)
	}
	if err := t.dtls.Start(dtlsParams); err != nil {
		return fmt.Errorf("dtls start: %w", err)
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	log.Info().Str("module", "rtc").Str("transport", t.id).Msg("transport connected")
	return nil
}

// Produce sets up an RTP receiver on the signaled SSRC and bridges it
// onto a local static track that consumers can be attached to.
func (t *transport) Produce(_ context.Context, kind domain.MediaKind, params domain.RTPParameters) (core.Producer, error) {
	codec, err := matchCodec(kind, params)
	if err != nil {
		return nil, err
	}

	receiver, err := t.engine.api.NewRTPReceiver(webrtc.NewRTPCodecType(string(kind)), t.dtls)
	if err != nil {
		return nil, fmt.Errorf("rtp receiver: %w", err)
	}

	var ssrc webrtc.SSRC
	if len(params.Encodings) > 0 {
		ssrc = webrtc.SSRC(params.Encodings[0].SSRC)
	}
	recvParams := webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{
			{RTPCodingParameters: webrtc.RTPCodingParameters{SSRC: ssrc}},
		},
	}
	if err := receiver.Receive(recvParams); err != nil {
		_ = receiver.Stop()
		return nil, fmt.Errorf("receive: %w", err)
	}

	id := uuid.NewString()
	local, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  codec.MimeType,
		ClockRate: codec.ClockRate,
		Channels:  codec.Channels,
	}, id, "peercall")
	if err != nil {
		_ = receiver.Stop()
		return nil, fmt.Errorf("local track: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	p := &producer{
		engine:   t.engine,
		id:       id,
		kind:     kind,
		codec:    codec,
		receiver: receiver,
		local:    local,
		cancel:   cancel,
	}
	t.engine.registerProducer(p)
	go p.pump(pumpCtx)

	log.Info().Str("module", "rtc").Str("transport", t.id).
		Str("producer", id).Str("kind", string(kind)).Msg("producer created")
	return p, nil
}

// Consume attaches an RTP sender for the producer's bridged track.
// Compatibility has already been checked by the coordinator.
func (t *transport) Consume(_ context.Context, producerID string, _ domain.RTPCapabilities) (core.Consumer, error) {
	p, ok := t.engine.producer(producerID)
	if !ok {
		return nil, fmt.Errorf("producer %s: %w", producerID, core.ErrNotFound)
	}

	sender, err := t.engine.api.NewRTPSender(p.local, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("rtp sender: %w", err)
	}
	sendParams := sender.GetParameters()
	if err := sender.Send(sendParams); err != nil {
		_ = sender.Stop()
		return nil, fmt.Errorf("sender start: %w", err)
	}

	ssrc := ssrcGenerator.Uint32()
	if len(sendParams.Encodings) > 0 && sendParams.Encodings[0].SSRC != 0 {
		ssrc = uint32(sendParams.Encodings[0].SSRC)
	}

	c := &consumer{
		id:         uuid.NewString(),
		producerID: producerID,
		kind:       p.kind,
		sender:     sender,
		params: domain.RTPParameters{
			Codecs:    []domain.RTPCodec{p.codec},
			Encodings: []domain.RTPEncoding{{SSRC: ssrc}},
		},
	}
	log.Info().Str("module", "rtc").Str("transport", t.id).
		Str("consumer", c.id).Str("producer", producerID).Msg("consumer created")
	return c, nil
}

func (t *transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return errors.Join(
		t.dtls.Stop(),
		t.ice.Stop(),
		t.gatherer.Close(),
	)
}

// matchCodec picks the first client codec matching the produced kind.
func matchCodec(kind domain.MediaKind, params domain.RTPParameters) (domain.RTPCodec, error) {
	prefix := string(kind) + "/"
	for _, c := range params.Codecs {
		if strings.HasPrefix(strings.ToLower(c.MimeType), prefix) {
			return c, nil
		}
	}
	return domain.RTPCodec{}, fmt.Errorf("no %s codec in rtp parameters", kind)
}
