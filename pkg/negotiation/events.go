package negotiation

import "github.com/p2pcall/p2pcall/pkg/api"

type Kind uint8

const (
	EventLocalMediaReady Kind = iota
	EventRemoteMediaReady
	EventCandidateDiscovered
)

type Event interface{ Kind() Kind }

type (
	LocalMediaReady     struct{ Stream Stream }
	RemoteMediaReady    struct{ Track RemoteTrack }
	CandidateDiscovered struct{ Candidate api.Candidate }
)

func (LocalMediaReady) Kind() Kind     { return EventLocalMediaReady }
func (RemoteMediaReady) Kind() Kind    { return EventRemoteMediaReady }
func (CandidateDiscovered) Kind() Kind { return EventCandidateDiscovered }
