package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/event"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
	"github.com/p2pcall/p2pcall/pkg/signaling"
)

var errFake = errors.New("fake failure")

type description struct {
	callId string
	d      api.Description
}

// fakeSignaling is a relay which answers right away.
type fakeSignaling struct {
	events event.Hub[signaling.Kind, signaling.Event]

	mu         sync.Mutex
	user       *api.User
	servers    []api.IceServer
	startErr   error
	hangupErr  error
	sendErr    error
	startGate  chan struct{}
	starts     []string
	hangups    []string
	answers    []description
	candidates []string
	incoming   [][2]bool
	logouts    int
}

func newFakeSignaling() *fakeSignaling {
	return &fakeSignaling{user: &api.User{Id: "u-1", UserIdentity: "alice"}}
}

func (f *fakeSignaling) On(k signaling.Kind, fn func(signaling.Event)) event.Handle {
	return f.events.On(k, fn)
}
func (f *fakeSignaling) Off(h event.Handle) { f.events.Off(h) }

func (f *fakeSignaling) push(e signaling.Event) { f.events.Emit(e) }

func (f *fakeSignaling) Connect(context.Context, string) error {
	f.events.Emit(signaling.Connected{})
	return nil
}

func (f *fakeSignaling) Disconnect() {
	f.mu.Lock()
	f.user = nil
	f.mu.Unlock()
	f.events.Emit(signaling.Disconnected{})
}

func (f *fakeSignaling) Authenticate(_ context.Context, identity, _ string) (api.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user != nil {
		return api.LoginResponse{}, signaling.ErrAlreadyAuthenticated
	}
	f.user = &api.User{Id: "u-2", UserIdentity: identity}
	u := *f.user
	return api.LoginResponse{User: &u, IceServers: f.servers}, nil
}

func (f *fakeSignaling) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = nil
	f.logouts++
	return nil
}

func (f *fakeSignaling) User() *api.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return nil
	}
	u := *f.user
	return &u
}

func (f *fakeSignaling) StartCall(ctx context.Context, hardwareId string, _, _ bool) (api.CallInfo, error) {
	f.mu.Lock()
	f.starts = append(f.starts, hardwareId)
	gate, err := f.startGate, f.startErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return api.CallInfo{}, ctx.Err()
		}
	}
	if err != nil {
		return api.CallInfo{}, err
	}
	return api.CallInfo{Id: fmt.Sprintf("c-%v", len(f.started())), Hardware: api.Hardware{Id: hardwareId}}, nil
}

func (f *fakeSignaling) Hangup(callId, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangups = append(f.hangups, callId)
	return f.hangupErr
}

func (f *fakeSignaling) SendDescription(_ context.Context, callId string, d api.Description) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, description{callId: callId, d: d})
	return f.sendErr
}

func (f *fakeSignaling) SendCandidate(_ context.Context, callId string, c api.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, callId+"/"+c.Candidate)
	return nil
}

func (f *fakeSignaling) ToggleIncomingMedia(_ context.Context, _ string, audio, video bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incoming = append(f.incoming, [2]bool{audio, video})
	return nil
}

func (f *fakeSignaling) started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.starts...)
}

func (f *fakeSignaling) sentAnswers() []description {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]description(nil), f.answers...)
}

func (f *fakeSignaling) sentCandidates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.candidates...)
}

func (f *fakeSignaling) hungUp() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hangups...)
}

// fakeNegotiator journals the calls the session makes.
type fakeNegotiator struct {
	events event.Hub[negotiation.Kind, negotiation.Event]

	mu         sync.Mutex
	gen        int
	journal    []string
	servers    []api.IceServer
	answerErr  error
	answerGate chan struct{}

	// candidateGate holds remote candidates until it is closed
	candidateGate chan struct{}
}

func (n *fakeNegotiator) On(k negotiation.Kind, fn func(negotiation.Event)) event.Handle {
	return n.events.On(k, fn)
}
func (n *fakeNegotiator) Off(h event.Handle) { n.events.Off(h) }

func (n *fakeNegotiator) add(format string, args ...any) {
	n.mu.Lock()
	n.journal = append(n.journal, fmt.Sprintf(format, args...))
	n.mu.Unlock()
}

func (n *fakeNegotiator) SetIceServers(servers []api.IceServer) {
	n.mu.Lock()
	n.servers = servers
	n.mu.Unlock()
}

func (n *fakeNegotiator) InitiateAnswer(ctx context.Context, offer api.Description, sendAudio bool) (api.Description, error) {
	n.mu.Lock()
	gen, gate, err := n.gen, n.answerGate, n.answerErr
	n.mu.Unlock()
	n.add("answer %v %v", offer.Sdp, sendAudio)
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return api.Description{}, ctx.Err()
		}
	}
	n.mu.Lock()
	superseded := n.gen != gen
	n.mu.Unlock()
	if superseded {
		return api.Description{}, negotiation.ErrSuperseded
	}
	if err != nil {
		return api.Description{}, &negotiation.NegotiationError{Op: negotiation.OpAnswer, Err: err}
	}
	return api.Description{Type: api.SdpAnswer, Sdp: "answer to " + offer.Sdp}, nil
}

func (n *fakeNegotiator) MarkNegotiationStarted()          { n.add("mark") }
func (n *fakeNegotiator) ToggleOutgoingAudio(enabled bool) { n.add("audio %v", enabled) }

func (n *fakeNegotiator) AddRemoteCandidate(c api.Candidate) {
	n.mu.Lock()
	gate := n.candidateGate
	n.mu.Unlock()
	if gate != nil {
		n.add("waiting %v", c.Candidate)
		<-gate
	}
	n.add("candidate %v", c.Candidate)
}

func (n *fakeNegotiator) Close() {
	n.mu.Lock()
	n.gen++
	n.mu.Unlock()
	n.add("close")
}

func (n *fakeNegotiator) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.journal...)
}

func (n *fakeNegotiator) count(prefix string) (c int) {
	for _, e := range n.list() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			c++
		}
	}
	return
}

func (n *fakeNegotiator) index(entry string) int {
	for i, e := range n.list() {
		if e == entry {
			return i
		}
	}
	return -1
}

// recorder keeps the session events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(s *Session, kinds ...Kind) *recorder {
	r := &recorder{}
	for _, k := range kinds {
		s.On(k, func(e Event) {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) list() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) of(k Kind) (out []Event) {
	for _, e := range r.list() {
		if e.Kind() == k {
			out = append(out, e)
		}
	}
	return
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %v", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
