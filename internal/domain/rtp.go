package domain

import "strings"

// RTP parameter shapes exchanged with clients. Only the fields the
// server actually inspects are modeled; everything else stays on the
// client side of the negotiation.

type RTPCodec struct {
	MimeType             string         `json:"mimeType"`
	PayloadType          uint8          `json:"payloadType,omitempty"`
	PreferredPayloadType uint8          `json:"preferredPayloadType,omitempty"`
	ClockRate            uint32         `json:"clockRate"`
	Channels             uint16         `json:"channels,omitempty"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	RTCPFeedback         []RTCPFeedback `json:"rtcpFeedback,omitempty"`
}

type RTCPFeedback struct {
	Type      string `json:"type"`
	Parameter string `json:"parameter,omitempty"`
}

type RTPEncoding struct {
	SSRC uint32 `json:"ssrc,omitempty"`
	RID  string `json:"rid,omitempty"`
}

// RTPParameters describe one produced or consumed stream.
type RTPParameters struct {
	MID       string        `json:"mid,omitempty"`
	Codecs    []RTPCodec    `json:"codecs"`
	Encodings []RTPEncoding `json:"encodings,omitempty"`
}

// RTPCapabilities describe what an endpoint can send or receive.
type RTPCapabilities struct {
	Codecs []RTPCodec `json:"codecs"`
}

// SupportsMimeType reports whether caps contain a codec with the given
// mime type, compared case-insensitively as mime types are.
func (c RTPCapabilities) SupportsMimeType(mimeType string) bool {
	for _, codec := range c.Codecs {
		if strings.EqualFold(codec.MimeType, mimeType) {
			return true
		}
	}
	return false
}
