package session

import (
	"context"
	"sync"
	"testing"

	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
	"github.com/p2pcall/p2pcall/pkg/signaling"
)

type track struct {
	mu      sync.Mutex
	enabled bool
	stops   int
}

func (t *track) ID() string                  { return "mic" }
func (t *track) Kind() negotiation.MediaKind { return negotiation.Audio }
func (t *track) Enabled() bool               { t.mu.Lock(); defer t.mu.Unlock(); return t.enabled }
func (t *track) SetEnabled(v bool)           { t.mu.Lock(); t.enabled = v; t.mu.Unlock() }
func (t *track) Stop()                       { t.mu.Lock(); t.stops++; t.mu.Unlock() }

type stream struct{ t *track }

func (s stream) ID() string                  { return "local" }
func (s stream) Tracks() []negotiation.Track { return []negotiation.Track{s.t} }

type mic struct {
	mu     sync.Mutex
	tracks []*track
}

func (m *mic) GetUserMedia(context.Context, negotiation.Constraints) (negotiation.Stream, error) {
	t := &track{enabled: true}
	m.mu.Lock()
	m.tracks = append(m.tracks, t)
	m.mu.Unlock()
	return stream{t: t}, nil
}

type remote struct{}

func (remote) ID() string                  { return "cam" }
func (remote) StreamID() string            { return "remote" }
func (remote) Kind() negotiation.MediaKind { return negotiation.Video }

type peer struct {
	mu      sync.Mutex
	onIce   func(api.Candidate)
	onTrack func(negotiation.RemoteTrack)
	applied []string
	local   bool
	closed  int
}

func (p *peer) AddTrack(negotiation.Track, negotiation.Stream) error { return nil }
func (p *peer) OnICECandidate(fn func(api.Candidate))                { p.mu.Lock(); p.onIce = fn; p.mu.Unlock() }
func (p *peer) OnTrack(fn func(negotiation.RemoteTrack))             { p.mu.Lock(); p.onTrack = fn; p.mu.Unlock() }
func (p *peer) CreateOffer() (api.Description, error)                { return api.Description{}, nil }
func (p *peer) SetRemoteDescription(api.Description) error           { return nil }
func (p *peer) Close() error                                         { p.mu.Lock(); p.closed++; p.mu.Unlock(); return nil }

func (p *peer) CreateAnswer() (api.Description, error) {
	return api.Description{Type: api.SdpAnswer, Sdp: "pc answer"}, nil
}

func (p *peer) SetLocalDescription(api.Description) error {
	p.mu.Lock()
	p.local = true
	p.mu.Unlock()
	return nil
}

func (p *peer) AddICECandidate(c api.Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.local {
		c.Candidate = "early " + c.Candidate
	}
	p.applied = append(p.applied, c.Candidate)
	return nil
}

func (p *peer) candidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.applied...)
}

func (p *peer) gather(c string) { p.mu.Lock(); fn := p.onIce; p.mu.Unlock(); fn(api.Candidate{Candidate: c}) }
func (p *peer) track()          { p.mu.Lock(); fn := p.onTrack; p.mu.Unlock(); fn(remote{}) }

type peers struct {
	mu   sync.Mutex
	list []*peer
}

func (f *peers) NewPeer([]api.IceServer) (negotiation.PeerConnection, error) {
	p := &peer{}
	f.mu.Lock()
	f.list = append(f.list, p)
	f.mu.Unlock()
	return p, nil
}

func (f *peers) last() *peer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.list) == 0 {
		return nil
	}
	return f.list[len(f.list)-1]
}

func TestCallWithEngine(t *testing.T) {
	sig := newFakeSignaling()
	pcs, media := &peers{}, &mic{}
	engine := negotiation.New(pcs, media, logger.Nop())
	s := New(sig, engine, logger.Nop())
	defer s.Close()
	events := record(s, EventLocalMedia, EventRemoteMedia, EventHangup)

	call, err := s.StartCall(context.Background(), "dev-1", true, true, false)
	if err != nil {
		t.Fatal(err)
	}
	sig.push(signaling.RemoteCandidate{CallId: call.Id, Candidate: api.Candidate{Candidate: "r1"}})
	sig.push(signaling.CallAccepted{CallId: call.Id, Description: offer})
	sig.push(signaling.RemoteCandidate{CallId: call.Id, Candidate: api.Candidate{Candidate: "r2"}})
	sig.push(signaling.RemoteCandidate{CallId: "ghost", Candidate: api.Candidate{Candidate: "g"}})

	waitFor(t, "answer", func() bool { return len(sig.sentAnswers()) == 1 })
	if a := sig.sentAnswers()[0]; a.callId != call.Id || a.d.Sdp != "pc answer" {
		t.Errorf("answer %+v", a)
	}
	pc := pcs.last()
	waitFor(t, "candidates", func() bool { return len(pc.candidates()) == 2 })
	if got := pc.candidates(); got[0] != "r1" || got[1] != "r2" {
		t.Errorf("remote candidates %v", got)
	}
	if media.tracks[0].Enabled() {
		t.Errorf("muted microphone is on")
	}

	pc.gather("l1")
	if got := sig.sentCandidates(); len(got) != 1 || got[0] != call.Id+"/l1" {
		t.Errorf("local candidates %v", got)
	}

	pc.track()
	if c, _ := s.CurrentCall(); c.Status != Active {
		t.Errorf("status %v", c.Status)
	}
	if n := len(events.of(EventLocalMedia)); n != 1 {
		t.Errorf("%v local media events", n)
	}

	if err = s.HangupCall(""); err != nil {
		t.Fatal(err)
	}
	if err = s.HangupCall(""); err != ErrNoActiveCall {
		t.Errorf("second hangup %v", err)
	}
	if pc.closed != 1 || media.tracks[0].stops != 1 {
		t.Errorf("released %v peers and %v tracks", pc.closed, media.tracks[0].stops)
	}
	if engine.State() != negotiation.Idle {
		t.Errorf("engine is %v", engine.State())
	}

	// late callbacks of the old negotiation
	pc.gather("l2")
	pc.track()
	if got := sig.sentCandidates(); len(got) != 1 {
		t.Errorf("late candidate sent %v", got)
	}
	if n := len(events.of(EventRemoteMedia)); n != 1 {
		t.Errorf("%v remote media events", n)
	}
}
