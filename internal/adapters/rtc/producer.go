package rtc

import (
	"context"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

// producer bridges one inbound RTP stream onto a local track. The pump
// goroutine runs until Close or a read error; consumers attach senders
// to the local track and never touch the receiver.
type producer struct {
	engine *Engine
	id     string
	kind   domain.MediaKind
	codec  domain.RTPCodec

	receiver *webrtc.RTPReceiver
	local    *webrtc.TrackLocalStaticRTP
	cancel   context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

var _ core.Producer = (*producer)(nil)

func (p *producer) ID() string             { return p.id }
func (p *producer) Kind() domain.MediaKind { return p.kind }

func (p *producer) pump(ctx context.Context) {
	track := p.receiver.Track()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "rtc").Str("producer", p.id).Msg("pump read stopped")
			return
		}
		if err := p.forward(pkt); err != nil {
			log.Debug().Err(err).Str("module", "rtc").Str("producer", p.id).Msg("pump write stopped")
			return
		}
	}
}

func (p *producer) forward(pkt *rtp.Packet) error {
	return p.local.WriteRTP(pkt)
}

// Close is idempotent. After it returns the producer id is gone from
// the engine and can no longer be consumed.
func (p *producer) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.engine.unregisterProducer(p.id)
		p.closeErr = p.receiver.Stop()
		log.Info().Str("module", "rtc").Str("producer", p.id).Msg("producer closed")
	})
	return p.closeErr
}
