package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/p2pcall/p2pcall/pkg/api"
)

var errFake = errors.New("fake failure")

// journal is an ordered log of everything fakes did.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) index(entry string) int {
	for i, e := range j.list() {
		if e == entry {
			return i
		}
	}
	return -1
}

func (j *journal) count(entry string) (n int) {
	for _, e := range j.list() {
		if e == entry {
			n++
		}
	}
	return
}

type fakeTrack struct {
	id   string
	kind MediaKind
	log  *journal

	mu      sync.Mutex
	enabled bool
	stops   int
}

func (t *fakeTrack) ID() string      { return t.id }
func (t *fakeTrack) Kind() MediaKind { return t.kind }
func (t *fakeTrack) Enabled() bool   { t.mu.Lock(); defer t.mu.Unlock(); return t.enabled }
func (t *fakeTrack) SetEnabled(v bool) {
	t.mu.Lock()
	t.enabled = v
	t.mu.Unlock()
}
func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stops++
	t.mu.Unlock()
	t.log.add("stop %v", t.id)
}
func (t *fakeTrack) stopped() int { t.mu.Lock(); defer t.mu.Unlock(); return t.stops }

type fakeStream struct {
	id     string
	tracks []Track
}

func (s *fakeStream) ID() string      { return s.id }
func (s *fakeStream) Tracks() []Track { return s.tracks }

func (s *fakeStream) track(kind MediaKind) *fakeTrack {
	for _, t := range s.tracks {
		if t.Kind() == kind {
			return t.(*fakeTrack)
		}
	}
	return nil
}

type fakeMedia struct {
	log *journal
	err error

	mu          sync.Mutex
	n           int
	streams     []*fakeStream
	constraints []Constraints
	// gates hold GetUserMedia calls by their number
	gates map[int]chan struct{}
}

func (m *fakeMedia) hold(call int) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gates == nil {
		m.gates = make(map[int]chan struct{})
	}
	ch := make(chan struct{})
	m.gates[call] = ch
	return ch
}

func (m *fakeMedia) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	m.mu.Lock()
	m.n++
	n := m.n
	gate := m.gates[n]
	m.constraints = append(m.constraints, c)
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	s := &fakeStream{id: fmt.Sprintf("s%v", n)}
	if c.Audio {
		s.tracks = append(s.tracks, &fakeTrack{id: fmt.Sprintf("s%v-audio", n), kind: Audio, enabled: true, log: m.log})
	}
	if c.Video {
		s.tracks = append(s.tracks, &fakeTrack{id: fmt.Sprintf("s%v-video", n), kind: Video, enabled: true, log: m.log})
	}
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	m.log.add("media %v", s.id)
	return s, nil
}

func (m *fakeMedia) stream(i int) *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= len(m.streams) {
		return nil
	}
	return m.streams[i]
}

type fakeRemoteTrack struct{ id string }

func (t fakeRemoteTrack) ID() string       { return t.id }
func (t fakeRemoteTrack) StreamID() string { return "remote" }
func (t fakeRemoteTrack) Kind() MediaKind  { return Video }

type fakePeer struct {
	id     string
	log    *journal
	failOn string
	// beforeLocal runs right before the local description is applied
	beforeLocal func()

	mu      sync.Mutex
	onIce   func(api.Candidate)
	onTrack func(RemoteTrack)
	tracks  []Track
	applied []string
	closes  int
}

func (p *fakePeer) fail(op string) error {
	if p.failOn == op {
		return errFake
	}
	return nil
}

func (p *fakePeer) AddTrack(t Track, _ Stream) error {
	if err := p.fail(OpTrack); err != nil {
		return err
	}
	p.mu.Lock()
	p.tracks = append(p.tracks, t)
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(api.Candidate)) { p.mu.Lock(); p.onIce = fn; p.mu.Unlock() }
func (p *fakePeer) OnTrack(fn func(RemoteTrack))          { p.mu.Lock(); p.onTrack = fn; p.mu.Unlock() }

func (p *fakePeer) CreateOffer() (api.Description, error) {
	p.log.add("%v offer", p.id)
	return api.Description{Type: api.SdpOffer, Sdp: p.id}, p.fail(OpOffer)
}

func (p *fakePeer) CreateAnswer() (api.Description, error) {
	p.log.add("%v answer", p.id)
	return api.Description{Type: api.SdpAnswer, Sdp: p.id}, p.fail(OpAnswer)
}

func (p *fakePeer) SetLocalDescription(api.Description) error {
	if p.beforeLocal != nil {
		p.beforeLocal()
	}
	p.log.add("%v local", p.id)
	return p.fail(OpLocalDescription)
}

func (p *fakePeer) SetRemoteDescription(api.Description) error {
	p.log.add("%v remote", p.id)
	return p.fail(OpRemoteDescription)
}

func (p *fakePeer) AddICECandidate(c api.Candidate) error {
	p.log.add("%v candidate %v", p.id, c.Candidate)
	p.mu.Lock()
	p.applied = append(p.applied, c.Candidate)
	p.mu.Unlock()
	if p.failOn == "candidate" {
		return errFake
	}
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closes++
	p.mu.Unlock()
	p.log.add("close %v", p.id)
	return nil
}

// gather pretends the connection found a local candidate.
func (p *fakePeer) gather(c string) {
	p.mu.Lock()
	fn := p.onIce
	p.mu.Unlock()
	fn(api.Candidate{Candidate: c})
}

func (p *fakePeer) remoteTrack(id string) {
	p.mu.Lock()
	fn := p.onTrack
	p.mu.Unlock()
	fn(fakeRemoteTrack{id: id})
}

func (p *fakePeer) appliedCandidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.applied...)
}

func (p *fakePeer) closed() int { p.mu.Lock(); defer p.mu.Unlock(); return p.closes }

type fakeFactory struct {
	log    *journal
	err    error
	failOn string
	setup  func(p *fakePeer)

	mu      sync.Mutex
	peers   []*fakePeer
	servers [][]api.IceServer
}

func (f *fakeFactory) NewPeer(servers []api.IceServer) (PeerConnection, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	p := &fakePeer{id: fmt.Sprintf("pc%v", len(f.peers)+1), log: f.log, failOn: f.failOn}
	f.peers = append(f.peers, p)
	f.servers = append(f.servers, servers)
	f.mu.Unlock()
	if f.setup != nil {
		f.setup(p)
	}
	f.log.add("new %v", p.id)
	return p, nil
}

func (f *fakeFactory) peer(i int) *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.peers) {
		return nil
	}
	return f.peers[i]
}

func (f *fakeFactory) len() int { f.mu.Lock(); defer f.mu.Unlock(); return len(f.peers) }
