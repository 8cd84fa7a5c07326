package negotiation

import (
	"context"

	"github.com/p2pcall/p2pcall/pkg/api"
)

type MediaKind string

const (
	Audio MediaKind = "audio"
	Video MediaKind = "video"
)

// Track is a local media track.
type Track interface {
	ID() string
	Kind() MediaKind
	Enabled() bool
	// SetEnabled mutes or unmutes the track, capture keeps going.
	SetEnabled(enabled bool)
	Stop()
}

// Stream is a set of local tracks captured together.
type Stream interface {
	ID() string
	Tracks() []Track
}

type Constraints struct {
	Audio bool
	Video bool
}

// MediaSource captures local media.
type MediaSource interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// RemoteTrack is a track received from the remote party.
type RemoteTrack interface {
	ID() string
	StreamID() string
	Kind() MediaKind
}

// PeerConnection is the part of a WebRTC peer connection the engine drives.
type PeerConnection interface {
	AddTrack(track Track, stream Stream) error
	// OnICECandidate sets the handler of locally gathered candidates,
	// the end of gathering is not reported.
	OnICECandidate(fn func(api.Candidate))
	OnTrack(fn func(RemoteTrack))
	CreateOffer() (api.Description, error)
	CreateAnswer() (api.Description, error)
	SetLocalDescription(d api.Description) error
	SetRemoteDescription(d api.Description) error
	AddICECandidate(c api.Candidate) error
	Close() error
}

type PeerFactory interface {
	NewPeer(servers []api.IceServer) (PeerConnection, error)
}
