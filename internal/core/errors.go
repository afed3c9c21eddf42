package core

import "errors"

var (
	// ErrNotFound covers a transport, producer or peer id that is
	// absent from the registry or owned by another connection. Always
	// recoverable; surfaced to the requesting side, never fatal.
	ErrNotFound = errors.New("not found")

	// ErrIncompatible means the receiver capabilities cannot decode
	// the requested producer.
	ErrIncompatible = errors.New("incompatible rtp capabilities")
)
