package webrtc

import (
	"errors"
	"fmt"

	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
	"github.com/pion/webrtc/v4"
)

var ErrForeignTrack = errors.New("not a pion track")

// Local is a local track backed by a pion track.
type Local interface {
	TrackLocal() webrtc.TrackLocal
}

// senderBound tracks want to know their sender.
type senderBound interface {
	bind(sender *webrtc.RTPSender)
}

// Peer is a pion peer connection.
type Peer struct {
	conn *webrtc.PeerConnection
	log  *logger.Logger
}

func newPeer(conn *webrtc.PeerConnection, log *logger.Logger) *Peer {
	p := &Peer{conn: conn, log: log}
	conn.OnICEConnectionStateChange(p.handleICEState)
	return p
}

// Conn returns the underlying pion connection.
func (p *Peer) Conn() *webrtc.PeerConnection { return p.conn }

func (p *Peer) AddTrack(t negotiation.Track, _ negotiation.Stream) error {
	local, ok := t.(Local)
	if !ok {
		return fmt.Errorf("%w: %T", ErrForeignTrack, t)
	}
	sender, err := p.conn.AddTrack(local.TrackLocal())
	if err != nil {
		return err
	}
	if b, ok := t.(senderBound); ok {
		b.bind(sender)
	}
	// Read incoming RTCP packets
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(rtcpBuf); err != nil {
				return
			}
		}
	}()
	p.log.Debug().Msgf("Added [%s] track", t.Kind())
	return nil
}

func (p *Peer) OnICECandidate(fn func(api.Candidate)) {
	p.conn.OnICECandidate(func(ice *webrtc.ICECandidate) {
		// gathering is over
		if ice == nil {
			p.log.Debug().Msg("ICE gathering was complete probably")
			return
		}
		candidate := ice.ToJSON()
		p.log.Debug().Str("candidate", candidate.Candidate).Msg("ICE")
		fn(toCandidate(candidate))
	})
}

func (p *Peer) OnTrack(fn func(negotiation.RemoteTrack)) {
	p.conn.OnTrack(func(t *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(&RemoteTrack{Track: t})
	})
}

func (p *Peer) CreateOffer() (api.Description, error) {
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return api.Description{}, err
	}
	return toDescription(offer), nil
}

func (p *Peer) CreateAnswer() (api.Description, error) {
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return api.Description{}, err
	}
	return toDescription(answer), nil
}

func (p *Peer) SetLocalDescription(d api.Description) error {
	return p.conn.SetLocalDescription(fromDescription(d))
}

func (p *Peer) SetRemoteDescription(d api.Description) error {
	return p.conn.SetRemoteDescription(fromDescription(d))
}

func (p *Peer) AddICECandidate(c api.Candidate) error {
	if err := p.conn.AddICECandidate(fromCandidate(c)); err != nil {
		return err
	}
	p.log.Debug().Str("candidate", c.Candidate).Msg("Ice")
	return nil
}

func (p *Peer) Close() error {
	if p.conn.ConnectionState() == webrtc.PeerConnectionStateClosed {
		return nil
	}
	err := p.conn.Close()
	p.log.Debug().Msg("WebRTC stop")
	return err
}

func (p *Peer) handleICEState(state webrtc.ICEConnectionState) {
	p.log.Debug().Str(".state", state.String()).Msg("ICE")
	switch state {
	case webrtc.ICEConnectionStateConnected:
		p.log.Info().Msg("Connected")
	case webrtc.ICEConnectionStateFailed:
		p.log.Error().Msgf("WebRTC connection fail! connection: %v, ice: %v, gathering: %v, signalling: %v",
			p.conn.ConnectionState(), p.conn.ICEConnectionState(), p.conn.ICEGatheringState(),
			p.conn.SignalingState())
	case webrtc.ICEConnectionStateDisconnected:
		p.log.Warn().Msg("Disconnected")
	}
}

// RemoteTrack is a track coming from the remote party.
type RemoteTrack struct {
	Track *webrtc.TrackRemote
}

func (t *RemoteTrack) ID() string                  { return t.Track.ID() }
func (t *RemoteTrack) StreamID() string            { return t.Track.StreamID() }
func (t *RemoteTrack) Kind() negotiation.MediaKind { return kindOf(t.Track.Kind()) }

// Drain reads the track until it ends calling fn with the size
// of every RTP packet.
func (t *RemoteTrack) Drain(fn func(n int)) {
	buf := make([]byte, 1500)
	for {
		n, _, err := t.Track.Read(buf)
		if err != nil {
			return
		}
		if fn != nil {
			fn(n)
		}
	}
}
