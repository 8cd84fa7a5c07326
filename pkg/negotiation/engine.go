// Package negotiation drives one WebRTC peer connection through
// the offer/answer and ICE candidate exchange.
//
// Candidates travel through two gates. Locally gathered candidates are
// held until the remote party is ready to receive them
// (MarkNegotiationStarted), remote candidates are held until the
// connection has both descriptions. Each gate opens exactly once per
// negotiation and releases what it holds in arrival order.
//
// Every negotiation gets a generation number. Starting a new one or
// closing the engine bumps it, so steps and callbacks of the old
// negotiation turn into no-ops that clean up after themselves.
package negotiation

import (
	"context"
	"sync"

	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/event"
	"github.com/p2pcall/p2pcall/pkg/logger"
)

type State uint8

const (
	Idle State = iota
	Offering
	AwaitingAnswer
	Answering
	Connected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Offering:
		return "offering"
	case AwaitingAnswer:
		return "awaiting answer"
	case Answering:
		return "answering"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

type Engine struct {
	peers  PeerFactory
	media  MediaSource
	log    *logger.Logger
	events event.Hub[Kind, Event]

	// emit keeps CandidateDiscovered in order between the flush and
	// the live candidates
	emit sync.Mutex

	mu       sync.Mutex
	state    State
	gen      uint64
	pc       PeerConnection
	stream   Stream
	servers  []api.IceServer
	outgoing []api.Candidate
	outOpen  bool
	incoming []api.Candidate
	inOpen   bool
}

func New(peers PeerFactory, media MediaSource, log *logger.Logger) *Engine {
	return &Engine{peers: peers, media: media, log: log.Module("negotiation")}
}

func (e *Engine) On(k Kind, fn func(Event)) event.Handle { return e.events.On(k, fn) }
func (e *Engine) Off(h event.Handle)                    { e.events.Off(h) }

func (e *Engine) State() State { e.mu.Lock(); defer e.mu.Unlock(); return e.state }

// SetIceServers sets the STUN/TURN servers for the next peer connections.
func (e *Engine) SetIceServers(servers []api.IceServer) {
	e.mu.Lock()
	e.servers = append([]api.IceServer(nil), servers...)
	e.mu.Unlock()
}

// InitiateOffer captures local media, creates a new peer connection and
// applies a fresh offer as its local description.
func (e *Engine) InitiateOffer(ctx context.Context, audio, video bool) (api.Description, error) {
	a := e.begin(Offering, true)
	if err := e.prepare(ctx, a, Constraints{Audio: audio, Video: video}, nil); err != nil {
		return api.Description{}, err
	}

	offer, err := a.pc.CreateOffer()
	if err != nil {
		return api.Description{}, a.abort(OpOffer, err)
	}
	if err = a.pc.SetLocalDescription(offer); err != nil {
		return api.Description{}, a.abort(OpLocalDescription, err)
	}

	e.mu.Lock()
	if e.gen != a.gen {
		e.mu.Unlock()
		return api.Description{}, ErrSuperseded
	}
	e.state = AwaitingAnswer
	e.mu.Unlock()

	e.log.Debug().Msg("Offer is ready")
	return offer, nil
}

// AcceptAnswer applies the remote answer to the pending offer and lets
// the remote candidates in.
func (e *Engine) AcceptAnswer(remote api.Description) error {
	e.mu.Lock()
	if e.state != AwaitingAnswer {
		e.mu.Unlock()
		return ErrInvalidState
	}
	a := &attempt{e: e, gen: e.gen, pc: e.pc, stream: e.stream, installed: true}
	e.mu.Unlock()

	if err := a.pc.SetRemoteDescription(remote); err != nil {
		return a.abort(OpRemoteDescription, err)
	}
	return e.connected(a)
}

// InitiateAnswer answers the remote offer. Only audio is captured,
// sendAudio mutes or unmutes it from the start. Remote candidates
// collected so far are applied right after the answer is set.
func (e *Engine) InitiateAnswer(ctx context.Context, remote api.Description, sendAudio bool) (api.Description, error) {
	a := e.begin(Answering, false)
	if err := e.prepare(ctx, a, Constraints{Audio: true}, &sendAudio); err != nil {
		return api.Description{}, err
	}

	if err := a.pc.SetRemoteDescription(remote); err != nil {
		return api.Description{}, a.abort(OpRemoteDescription, err)
	}
	if !e.current(a.gen) {
		return api.Description{}, ErrSuperseded
	}
	answer, err := a.pc.CreateAnswer()
	if err != nil {
		return api.Description{}, a.abort(OpAnswer, err)
	}
	if err = a.pc.SetLocalDescription(answer); err != nil {
		return api.Description{}, a.abort(OpLocalDescription, err)
	}
	if err = e.connected(a); err != nil {
		return api.Description{}, err
	}

	e.log.Debug().Msg("Answer is ready")
	return answer, nil
}

// MarkNegotiationStarted tells that the remote party takes candidates now.
// The held ones are emitted in order, every later one goes out immediately.
func (e *Engine) MarkNegotiationStarted() {
	e.emit.Lock()
	defer e.emit.Unlock()

	e.mu.Lock()
	if e.outOpen {
		e.mu.Unlock()
		return
	}
	held := e.outgoing
	e.outgoing, e.outOpen = nil, true
	e.mu.Unlock()

	for _, c := range held {
		e.events.Emit(CandidateDiscovered{Candidate: c})
	}
}

// AddRemoteCandidate applies the candidate or holds it until the
// connection is ready for it. Failures are only logged.
func (e *Engine) AddRemoteCandidate(c api.Candidate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc == nil || !e.inOpen {
		e.incoming = append(e.incoming, c)
		return
	}
	if err := e.pc.AddICECandidate(c); err != nil {
		e.log.Warn().Err(err).Msgf("remote candidate %v", c)
	}
}

// ToggleOutgoingAudio mutes or unmutes every local audio track.
func (e *Engine) ToggleOutgoingAudio(enabled bool) {
	e.mu.Lock()
	stream := e.stream
	e.mu.Unlock()
	if stream == nil {
		return
	}
	setAudio(stream, enabled)
}

// Close releases the local media and the peer connection.
// Any negotiation in flight is abandoned.
func (e *Engine) Close() {
	pc, stream := e.reset()
	e.release(pc, stream)
}

func (e *Engine) reset() (PeerConnection, Stream) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetLocked()
}

func (e *Engine) resetLocked() (PeerConnection, Stream) {
	e.gen++
	pc, stream := e.pc, e.stream
	e.pc, e.stream = nil, nil
	e.state = Idle
	e.outgoing, e.incoming = nil, nil
	e.outOpen, e.inOpen = false, false
	return pc, stream
}

// begin starts a new generation and releases whatever the previous one had.
// An offer starts from scratch while an answer keeps the remote candidates
// that came ahead of it and the state of the outgoing gate.
func (e *Engine) begin(s State, offer bool) *attempt {
	e.mu.Lock()
	e.gen++
	a := &attempt{e: e, gen: e.gen}
	pc, stream := e.pc, e.stream
	e.pc, e.stream = nil, nil
	e.state = s
	e.outgoing = nil
	e.inOpen = false
	if offer {
		e.incoming = nil
		e.outOpen = false
	}
	e.mu.Unlock()

	e.release(pc, stream)
	e.log.Debug().Msgf("Negotiation %v: %v", a.gen, s)
	return a
}

// prepare captures the media, makes a new peer connection with the local
// tracks attached and installs both as the current ones.
func (e *Engine) prepare(ctx context.Context, a *attempt, c Constraints, audioEnabled *bool) error {
	stream, err := e.media.GetUserMedia(ctx, c)
	if err != nil {
		return a.abort(OpMedia, err)
	}
	a.stream = stream
	if audioEnabled != nil {
		setAudio(stream, *audioEnabled)
	}
	if err = ctx.Err(); err != nil {
		return a.abort(OpMedia, err)
	}

	e.mu.Lock()
	servers := e.servers
	stale := e.gen != a.gen
	e.mu.Unlock()
	if stale {
		return a.abort(OpMedia, ErrSuperseded)
	}

	pc, err := e.peers.NewPeer(servers)
	if err != nil {
		return a.abort(OpPeer, err)
	}
	a.pc = pc
	pc.OnICECandidate(func(c api.Candidate) { e.discovered(a.gen, c) })
	pc.OnTrack(func(t RemoteTrack) {
		if !e.current(a.gen) {
			return
		}
		e.log.Debug().Msgf("Remote %v track %v", t.Kind(), t.ID())
		e.events.Emit(RemoteMediaReady{Track: t})
	})
	for _, t := range stream.Tracks() {
		if err = pc.AddTrack(t, stream); err != nil {
			return a.abort(OpTrack, err)
		}
	}

	e.mu.Lock()
	if e.gen != a.gen {
		e.mu.Unlock()
		return a.abort(OpPeer, ErrSuperseded)
	}
	e.pc, e.stream = pc, stream
	a.installed = true
	e.mu.Unlock()

	e.events.Emit(LocalMediaReady{Stream: stream})
	return nil
}

// connected finishes the negotiation applying the held remote candidates.
func (e *Engine) connected(a *attempt) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != a.gen {
		return ErrSuperseded
	}
	e.state = Connected
	for _, c := range e.incoming {
		if err := e.pc.AddICECandidate(c); err != nil {
			e.log.Warn().Err(err).Msgf("remote candidate %v", c)
		}
	}
	e.incoming, e.inOpen = nil, true
	return nil
}

func (e *Engine) discovered(gen uint64, c api.Candidate) {
	e.emit.Lock()
	defer e.emit.Unlock()

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return
	}
	if !e.outOpen {
		e.outgoing = append(e.outgoing, c)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.events.Emit(CandidateDiscovered{Candidate: c})
}

func (e *Engine) current(gen uint64) bool { e.mu.Lock(); defer e.mu.Unlock(); return e.gen == gen }

func (e *Engine) release(pc PeerConnection, stream Stream) {
	if stream != nil {
		for _, t := range stream.Tracks() {
			t.Stop()
		}
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			e.log.Warn().Err(err).Msg("peer connection close")
		}
	}
}

func setAudio(stream Stream, enabled bool) {
	for _, t := range stream.Tracks() {
		if t.Kind() == Audio {
			t.SetEnabled(enabled)
		}
	}
}

// attempt is one negotiation in flight.
type attempt struct {
	e         *Engine
	gen       uint64
	pc        PeerConnection
	stream    Stream
	installed bool
}

// abort ends the attempt. Resources which were not installed are released
// here, installed ones belong to the engine. If the attempt is still the
// current negotiation the engine is closed.
func (a *attempt) abort(op string, err error) error {
	if !a.installed {
		a.e.release(a.pc, a.stream)
	}
	if err == ErrSuperseded {
		return ErrSuperseded
	}

	a.e.mu.Lock()
	if a.e.gen != a.gen {
		a.e.mu.Unlock()
		return ErrSuperseded
	}
	pc, stream := a.e.resetLocked()
	a.e.mu.Unlock()

	a.e.release(pc, stream)
	a.e.log.Error().Err(err).Msgf("Negotiation %v failed at %v", a.gen, op)
	return &NegotiationError{Op: op, Err: err}
}
