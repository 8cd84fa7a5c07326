package session

import (
	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
)

type Kind uint8

const (
	EventConnected Kind = iota
	EventDisconnected
	EventPeerOnline
	EventPeerOffline
	EventLocalMedia
	EventRemoteMedia
	EventHangup
	EventError
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
	case EventLocalMedia:
		return "LocalMedia"
	case EventRemoteMedia:
		return "RemoteMedia"
	case EventHangup:
		return "Hangup"
	case EventError:
		return "Error"
	default:
		return "Unknown"
	}
}

type Event interface{ Kind() Kind }

type (
	Connected    struct{}
	Disconnected struct{ Err error }
	PeerOnline   struct{ Hardware api.Hardware }
	PeerOffline  struct{ Hardware api.Hardware }
	LocalMedia   struct {
		CallId string
		Stream negotiation.Stream
	}
	RemoteMedia struct {
		CallId string
		Track  negotiation.RemoteTrack
	}
	// Hangup is the end of the call, Remote tells who ended it.
	Hangup struct {
		Call   Call
		Reason string
		Remote bool
	}
	// Error is a failure no caller could get, mostly *CallError.
	Error struct{ Err error }
)

func (Connected) Kind() Kind    { return EventConnected }
func (Disconnected) Kind() Kind { return EventDisconnected }
func (PeerOnline) Kind() Kind   { return EventPeerOnline }
func (PeerOffline) Kind() Kind  { return EventPeerOffline }
func (LocalMedia) Kind() Kind   { return EventLocalMedia }
func (RemoteMedia) Kind() Kind  { return EventRemoteMedia }
func (Hangup) Kind() Kind       { return EventHangup }
func (Error) Kind() Kind        { return EventError }
