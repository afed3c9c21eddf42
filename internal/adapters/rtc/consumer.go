package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/anhdn/peercall/internal/core"
	"github.com/anhdn/peercall/internal/domain"
)

type consumer struct {
	id         string
	producerID string
	kind       domain.MediaKind
	params     domain.RTPParameters
	sender     *webrtc.RTPSender

	closeOnce sync.Once
	closeErr  error
}

var _ core.Consumer = (*consumer)(nil)

func (c *consumer) ID() string                          { return c.id }
func (c *consumer) ProducerID() string                  { return c.producerID }
func (c *consumer) Kind() domain.MediaKind              { return c.kind }
func (c *consumer) RTPParameters() domain.RTPParameters { return c.params }

func (c *consumer) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.sender.Stop()
		log.Info().Str("module", "rtc").Str("consumer", c.id).Msg("consumer closed")
	})
	return c.closeErr
}
