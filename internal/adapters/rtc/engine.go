// Package rtc implements the media engine on pion/webrtc's ORTC-level
// API: ICE-lite transports, RTP receivers for producers and RTP
// senders for consumers, with no SDP involved.
package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

// Config fixes the network listen parameters every transport is bound to.
type Config struct {
	AnnouncedIP string
	MinPort     uint16
	MaxPort     uint16
}

type Engine struct {
	api  *webrtc.API
	caps domain.RTPCapabilities

	mu        sync.RWMutex
	producers map[string]*producer
}

var _ core.Engine = (*Engine)(nil)

func NewEngine(cfg Config) (*Engine, error) {
	se := webrtc.SettingEngine{}
	se.SetLite(true)
	if cfg.MinPort != 0 || cfg.MaxPort != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.MinPort, cfg.MaxPort); err != nil {
			return nil, fmt.Errorf("udp port range: %w", err)
		}
	}
	if cfg.AnnouncedIP != "" {
		se.SetNAT1To1IPs([]string{cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}

	me := &webrtc.MediaEngine{}
	for _, c := range routerCodecs() {
		if err := me.RegisterCodec(c.params, c.kind); err != nil {
			return nil, fmt.Errorf("register codec %s: %w", c.params.MimeType, err)
		}
	}

	log.Info().Str("module", "rtc").
		Str("announced_ip", cfg.AnnouncedIP).
		Uint16("min_port", cfg.MinPort).
		Uint16("max_port", cfg.MaxPort).
		Msg("engine ready")

	return &Engine{
		api:       webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se)),
		caps:      routerCapabilities(),
		producers: make(map[string]*producer),
	}, nil
}

type codecEntry struct {
	params webrtc.RTPCodecParameters
	kind   webrtc.RTPCodecType
}

func routerCodecs() []codecEntry {
	return []codecEntry{
		{
			params: webrtc.RTPCodecParameters{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:  webrtc.MimeTypeOpus,
					ClockRate: 48000,
					Channels:  2,
				},
				PayloadType: 111,
			},
			kind: webrtc.RTPCodecTypeAudio,
		},
		{
			params: webrtc.RTPCodecParameters{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:  webrtc.MimeTypeVP8,
					ClockRate: 90000,
				},
				PayloadType: 96,
			},
			kind: webrtc.RTPCodecTypeVideo,
		},
	}
}

func routerCapabilities() domain.RTPCapabilities {
	var caps domain.RTPCapabilities
	for _, c := range routerCodecs() {
		caps.Codecs = append(caps.Codecs, domain.RTPCodec{
			MimeType:             c.params.MimeType,
			PreferredPayloadType: uint8(c.params.PayloadType),
			ClockRate:            c.params.ClockRate,
			Channels:             c.params.Channels,
		})
	}
	return caps
}

func (e *Engine) RouterRtpCapabilities() domain.RTPCapabilities {
	return e.caps
}

func (e *Engine) CanConsume(producerID string, caps domain.RTPCapabilities) bool {
	e.mu.RLock()
	p, ok := e.producers[producerID]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	return caps.SupportsMimeType(p.codec.MimeType)
}

// CreateTransport allocates an ICE gatherer plus ICE/DTLS transport
// pair, gathers candidates and returns the parameters the remote side
// needs. Nothing is installed anywhere on failure.
func (e *Engine) CreateTransport(ctx context.Context) (core.Transport, error) {
	gatherer, err := e.api.NewICEGatherer(webrtc.ICEGatherOptions{})
	if err != nil {
		return nil, fmt.Errorf("ice gatherer: %w", err)
	}
	ice := e.api.NewICETransport(gatherer)
	dtls, err := e.api.NewDTLSTransport(ice, nil)
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("dtls transport: %w", err)
	}

	gathered := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gathered)
		}
	})
	if err := gatherer.Gather(); err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("gather: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		_ = gatherer.Close()
		return nil, ctx.Err()
	}

	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("ice parameters: %w", err)
	}
	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("ice candidates: %w", err)
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		_ = gatherer.Close()
		return nil, fmt.Errorf("dtls parameters: %w", err)
	}

	info := core.TransportInfo{ID: uuid.NewString()}
	if info.ICEParameters, err = json.Marshal(iceParams); err != nil {
		_ = gatherer.Close()
		return nil, err
	}
	if info.ICECandidates, err = json.Marshal(candidates); err != nil {
		_ = gatherer.Close()
		return nil, err
	}
	if info.DTLSParameters, err = json.Marshal(dtlsParams); err != nil {
		_ = gatherer.Close()
		return nil, err
	}

	log.Info().Str("module", "rtc").Str("transport", info.ID).
		Int("candidates", len(candidates)).Msg("transport created")

	return &transport{
		engine:   e,
		id:       info.ID,
		info:     info,
		gatherer: gatherer,
		ice:      ice,
		dtls:     dtls,
	}, nil
}

func (e *Engine) registerProducer(p *producer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.producers[p.id] = p
}

func (e *Engine) unregisterProducer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.producers, id)
}

func (e *Engine) producer(id string) (*producer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.producers[id]
	return p, ok
}
