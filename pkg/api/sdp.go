package api

import (
	"fmt"

	"github.com/pion/sdp/v3"
)

const (
	SdpOffer    = "offer"
	SdpAnswer   = "answer"
	SdpPranswer = "pranswer"
	SdpRollback = "rollback"
)

// Description is a session description as exchanged through the relay,
// the same shape as the browser's RTCSessionDescriptionInit.
type Description struct {
	Type string `json:"type"`
	Sdp  string `json:"sdp"`
}

func (d Description) IsZero() bool { return d.Type == "" && d.Sdp == "" }

// Media lists the media kinds (audio, video, application) of the description
// in their m-line order.
func (d Description) Media() ([]string, error) {
	var s sdp.SessionDescription
	if err := s.Unmarshal([]byte(d.Sdp)); err != nil {
		return nil, fmt.Errorf("sdp: %w", err)
	}
	kinds := make([]string, 0, len(s.MediaDescriptions))
	for _, m := range s.MediaDescriptions {
		kinds = append(kinds, m.MediaName.Media)
	}
	return kinds, nil
}

// HasMedia reports whether the description carries an m-line of the kind.
func (d Description) HasMedia(kind string) bool {
	kinds, err := d.Media()
	if err != nil {
		return false
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Candidate is an ICE candidate, the browser's RTCIceCandidateInit.
// The content is opaque to the call logic.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SdpMid           *string `json:"sdpMid,omitempty"`
	SdpMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func (c Candidate) String() string { return c.Candidate }
