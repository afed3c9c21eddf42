// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxDisplayNameLen = 36

var (
	ErrNameTooLong = errors.New("display name too long")
	ErrNameEmpty   = errors.New("display name empty")
)

// PeerID identifies one signaling connection. It is assigned by the
// transport layer on channel open and is the unit of ownership for
// every transport/producer/consumer resource.
type PeerID string

// MediaKind tags a producer or consumer stream.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// PresenceEntry is one row of the discovery list broadcast to all peers.
type PresenceEntry struct {
	ID   PeerID `json:"id"`
	Name string `json:"name"`
}

func ValidateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrNameTooLong
	}
	return nil
}
