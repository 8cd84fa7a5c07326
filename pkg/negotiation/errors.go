package negotiation

import (
	"errors"
	"fmt"
)

var (
	// ErrSuperseded is returned by a negotiation replaced with a newer one
	// or cancelled with Close while it was in flight.
	ErrSuperseded   = errors.New("negotiation superseded")
	ErrInvalidState = errors.New("invalid negotiation state")
)

const (
	OpMedia             = "media"
	OpPeer              = "peer"
	OpTrack             = "track"
	OpOffer             = "offer"
	OpAnswer            = "answer"
	OpLocalDescription  = "local description"
	OpRemoteDescription = "remote description"
)

// NegotiationError is a failed negotiation step.
type NegotiationError struct {
	Op  string
	Err error
}

func (e *NegotiationError) Error() string { return fmt.Sprintf("negotiation: %v: %v", e.Op, e.Err) }
func (e *NegotiationError) Unwrap() error { return e.Err }
