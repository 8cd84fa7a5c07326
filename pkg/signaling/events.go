package signaling

import "github.com/p2pcall/p2pcall/pkg/api"

type Kind uint8

const (
	EventConnected Kind = iota
	EventDisconnected
	EventPeerOnline
	EventPeerOffline
	EventCallAccepted
	EventCallHangup
	EventRemoteCandidate
)

func (k Kind) String() string {
	switch k {
	case EventConnected:
		return "Connected"
	case EventDisconnected:
		return "Disconnected"
	case EventPeerOnline:
		return "PeerOnline"
	case EventPeerOffline:
		return "PeerOffline"
	case EventCallAccepted:
		return "CallAccepted"
	case EventCallHangup:
		return "CallHangup"
	case EventRemoteCandidate:
		return "RemoteCandidate"
	default:
		return "Unknown"
	}
}

// Event is one of the relay notifications below.
type Event interface{ Kind() Kind }

type (
	Connected struct{}
	// Disconnected carries the reason when the relay dropped the connection,
	// it is nil after Disconnect.
	Disconnected struct{ Err error }
	PeerOnline   struct{ Hardware api.Hardware }
	PeerOffline  struct{ Hardware api.Hardware }
	CallAccepted struct {
		CallId      string
		Description api.Description
	}
	CallHangup struct {
		CallId string
		Reason string
	}
	RemoteCandidate struct {
		CallId    string
		Candidate api.Candidate
	}
)

func (Connected) Kind() Kind       { return EventConnected }
func (Disconnected) Kind() Kind    { return EventDisconnected }
func (PeerOnline) Kind() Kind      { return EventPeerOnline }
func (PeerOffline) Kind() Kind     { return EventPeerOffline }
func (CallAccepted) Kind() Kind    { return EventCallAccepted }
func (CallHangup) Kind() Kind      { return EventCallHangup }
func (RemoteCandidate) Kind() Kind { return EventRemoteCandidate }
