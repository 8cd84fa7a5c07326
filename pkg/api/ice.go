package api

import (
	"strings"

	"github.com/goccy/go-json"
)

// IceServer is a STUN/TURN server handed out by the relay at login.
type IceServer struct {
	Urls       Urls   `json:"urls"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

// Urls accepts both forms browsers use: a single string or a list.
type Urls []string

func (u *Urls) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*u = Urls{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*u = many
	return nil
}

// IsTurn reports whether any of the addresses is a relay (TURN) one.
func (s IceServer) IsTurn() bool {
	for _, u := range s.Urls {
		if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
			return true
		}
	}
	return false
}
