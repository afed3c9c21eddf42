package core

import (
	"context"
	"encoding/json"

	"github.com/anhdn/peercall/internal/domain"
)

// TransportInfo is everything the remote side of the negotiation needs
// to connect to a freshly allocated transport. ICE and DTLS parameters
// are opaque to the server and passed through verbatim.
type TransportInfo struct {
	ID             string          `json:"id"`
	ICEParameters  json.RawMessage `json:"iceParameters"`
	ICECandidates  json.RawMessage `json:"iceCandidates"`
	DTLSParameters json.RawMessage `json:"dtlsParameters"`
}

// ConnectParams carry the client's security parameters for a transport
// connect. ICEParameters are optional; browser stacks that run a full
// ICE agent supply them alongside the DTLS role and fingerprints.
type ConnectParams struct {
	DTLSParameters json.RawMessage `json:"dtlsParameters"`
	ICEParameters  json.RawMessage `json:"iceParameters,omitempty"`
}

// Producer is an outbound stream handle owned by exactly one peer.
type Producer interface {
	ID() string
	Kind() domain.MediaKind
	Close() error
}

// Consumer is an inbound stream handle receiving one remote producer.
type Consumer interface {
	ID() string
	ProducerID() string
	Kind() domain.MediaKind
	RTPParameters() domain.RTPParameters
	Close() error
}

// Transport is an engine-managed media endpoint scoped to one peer.
type Transport interface {
	ID() string
	Info() TransportInfo
	Connect(ctx context.Context, params ConnectParams) error
	Produce(ctx context.Context, kind domain.MediaKind, params domain.RTPParameters) (Producer, error)
	Consume(ctx context.Context, producerID string, caps domain.RTPCapabilities) (Consumer, error)
	Close() error
}

// Engine is the selective-forwarding media capability the coordinator
// drives. Implementations own codec negotiation, packet forwarding and
// the ICE/DTLS handshake; the server only sees these operations.
type Engine interface {
	RouterRtpCapabilities() domain.RTPCapabilities
	CreateTransport(ctx context.Context) (Transport, error)
	// CanConsume reports whether caps can decode the stream of the
	// given producer. Unknown producer ids report false.
	CanConsume(producerID string, caps domain.RTPCapabilities) bool
}
