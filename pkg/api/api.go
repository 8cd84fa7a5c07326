// Package api defines the wire protocol spoken with the signaling relay.
//
// Each message (request, response or push) is a JSON-encoded "packet" of the following structure:
//
//	id - (optional) a globally unique packet id, echoed back in the response;
//	 t - (required) one of the predefined packet types;
//	 p - (optional) packet payload.
//
// Requests carry an id and the relay answers with a packet that has the same id.
// Responses embed an optional error envelope next to their data:
//
//	{"id":"cfv68irdrc3ifu3jn6bg","t":30,"p":{"error":{"reason":"hardware is busy"}}}
//
// Pushes (notifications initiated by the relay) have no id.
//
// Example:
//
//	{"t":31,"p":{"callId":"c-1","sdpOffer":{"type":"offer","sdp":"v=0..."}}}
package api

import (
	"errors"

	"github.com/goccy/go-json"
)

type PT uint8

// Packet codes:
//
//	1x - user session
//	2x - hardware presence
//	3x - calls
const (
	UserConnected     PT = 1
	UserLogin         PT = 10
	UserLogout        PT = 11
	HardwareOnline    PT = 20
	HardwareOffline   PT = 21
	CallStart         PT = 30
	CallAccepted      PT = 31
	CallHangup        PT = 32
	CallAnswer        PT = 33
	CallIce           PT = 34
	CallIncomingIce   PT = 35
	CallIncomingMedia PT = 36
)

func (p PT) String() string {
	switch p {
	case UserConnected:
		return "UserConnected"
	case UserLogin:
		return "UserLogin"
	case UserLogout:
		return "UserLogout"
	case HardwareOnline:
		return "HardwareOnline"
	case HardwareOffline:
		return "HardwareOffline"
	case CallStart:
		return "CallStart"
	case CallAccepted:
		return "CallAccepted"
	case CallHangup:
		return "CallHangup"
	case CallAnswer:
		return "CallAnswer"
	case CallIce:
		return "CallIce"
	case CallIncomingIce:
		return "CallIncomingIce"
	case CallIncomingMedia:
		return "CallIncomingMedia"
	default:
		return "Unknown"
	}
}

var (
	ErrMalformed = errors.New("malformed")
	// ErrUnknown is reported when the relay fails without a reason.
	ErrUnknown = errors.New("unknown error")
)

// Error is the relay's error envelope.
type Error struct {
	Reason string `json:"reason"`
}

// Status is embedded into every response payload.
type Status struct {
	Error *Error `json:"error,omitempty"`
}

// Failed reports whether the relay rejected the request and why.
func (s Status) Failed() (reason string, failed bool) {
	if s.Error == nil {
		return "", false
	}
	if s.Error.Reason == "" {
		return ErrUnknown.Error(), true
	}
	return s.Error.Reason, true
}

// Unwrap decodes a packet payload, nil means the payload is malformed.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

func UnwrapChecked[T any](bytes []byte, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if out := Unwrap[T](bytes); out != nil {
		return out, nil
	}
	return nil, ErrMalformed
}
