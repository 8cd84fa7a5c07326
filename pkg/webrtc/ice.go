package webrtc

import (
	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/config"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
	"github.com/pion/webrtc/v4"
)

// ConfIceServers converts the configured servers.
func ConfIceServers(list []config.IceServer) []api.IceServer {
	servers := make([]api.IceServer, 0, len(list))
	for _, s := range list {
		if s.Urls == "" {
			continue
		}
		servers = append(servers, api.IceServer{Urls: api.Urls{s.Urls}, Username: s.Username, Credential: s.Credential})
	}
	return servers
}

func iceServers(list []api.IceServer) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(list))
	for _, s := range list {
		if len(s.Urls) == 0 {
			continue
		}
		servers = append(servers, webrtc.ICEServer{
			URLs:       append([]string(nil), s.Urls...),
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}

func toDescription(d webrtc.SessionDescription) api.Description {
	return api.Description{Type: d.Type.String(), Sdp: d.SDP}
}

func fromDescription(d api.Description) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.Sdp}
}

func toCandidate(c webrtc.ICECandidateInit) api.Candidate {
	return api.Candidate{
		Candidate:        c.Candidate,
		SdpMid:           c.SDPMid,
		SdpMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func fromCandidate(c api.Candidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SdpMid,
		SDPMLineIndex:    c.SdpMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func kindOf(t webrtc.RTPCodecType) negotiation.MediaKind {
	if t == webrtc.RTPCodecTypeAudio {
		return negotiation.Audio
	}
	return negotiation.Video
}
