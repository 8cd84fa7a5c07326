package session

import "github.com/p2pcall/p2pcall/pkg/api"

type Status uint8

const (
	// Pending is a call the relay accepted to start.
	Pending Status = iota
	// Starting is a call the remote party accepted, it's being negotiated.
	Starting
	// Active is a call with the remote media coming.
	Active
	Finished
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Call is one call with some hardware.
type Call struct {
	Id        string
	User      api.User
	Hardware  api.Hardware
	Status    Status
	LastError error
}

// media is what the user wants to send and receive in the call.
type media struct {
	recvAudio bool
	recvVideo bool
	sendAudio bool
}
