// Package session keeps the one call a user may have with some hardware.
//
// The session reacts to the relay events with negotiation steps and
// sends what the negotiation produces back to the relay. Relay messages
// are matched against the current call id, those of any other call are
// dropped. While a call is being started its id is not known yet, so
// the messages of unknown calls are held and replayed in order once
// the relay answers.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/event"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/negotiation"
	"github.com/p2pcall/p2pcall/pkg/signaling"
)

var ErrClosed = errors.New("session closed")

// Signaling is the relay side of the session.
type Signaling interface {
	On(k signaling.Kind, fn func(signaling.Event)) event.Handle
	Off(h event.Handle)
	Connect(ctx context.Context, address string) error
	Disconnect()
	Authenticate(ctx context.Context, identity, token string) (api.LoginResponse, error)
	Logout(ctx context.Context) error
	User() *api.User
	StartCall(ctx context.Context, hardwareId string, audio, video bool) (api.CallInfo, error)
	Hangup(callId, reason string) error
	SendDescription(ctx context.Context, callId string, d api.Description) error
	SendCandidate(ctx context.Context, callId string, c api.Candidate) error
	ToggleIncomingMedia(ctx context.Context, callId string, audio, video bool) error
}

// Negotiator is the peer connection side of the session.
type Negotiator interface {
	On(k negotiation.Kind, fn func(negotiation.Event)) event.Handle
	Off(h event.Handle)
	SetIceServers(servers []api.IceServer)
	InitiateAnswer(ctx context.Context, remote api.Description, sendAudio bool) (api.Description, error)
	MarkNegotiationStarted()
	AddRemoteCandidate(c api.Candidate)
	ToggleOutgoingAudio(enabled bool)
	Close()
}

type Option func(*Session)

func WithMetrics(m *Metrics) Option { return func(s *Session) { s.metrics = m } }

type Session struct {
	sig     Signaling
	neg     Negotiator
	log     *logger.Logger
	metrics *Metrics
	events  event.Hub[Kind, Event]
	subs    []func()

	// ctx ends the work started by relay events
	ctx    context.Context
	cancel context.CancelFunc

	// order keeps the relay events in order with the replay of the held ones
	order sync.Mutex
	// apply keeps a remote candidate ahead of the release of its negotiation
	apply sync.Mutex

	mu       sync.Mutex
	call     *Call
	since    time.Time
	starting bool
	target   string
	held     []signaling.Event
	want     media
	closed   bool
}

func New(sig Signaling, neg Negotiator, log *logger.Logger, opts ...Option) *Session {
	s := &Session{sig: sig, neg: neg, log: log.Module("session")}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for _, k := range []signaling.Kind{
		signaling.EventConnected,
		signaling.EventDisconnected,
		signaling.EventPeerOnline,
		signaling.EventPeerOffline,
		signaling.EventCallAccepted,
		signaling.EventCallHangup,
		signaling.EventRemoteCandidate,
	} {
		h := sig.On(k, s.onSignal)
		s.subs = append(s.subs, func() { sig.Off(h) })
	}
	for k, fn := range map[negotiation.Kind]func(negotiation.Event){
		negotiation.EventLocalMediaReady:     s.onLocalMedia,
		negotiation.EventRemoteMediaReady:    s.onRemoteMedia,
		negotiation.EventCandidateDiscovered: s.onCandidate,
	} {
		h := neg.On(k, fn)
		s.subs = append(s.subs, func() { neg.Off(h) })
	}
	return s
}

func (s *Session) On(k Kind, fn func(Event)) event.Handle { return s.events.On(k, fn) }
func (s *Session) Off(h event.Handle)                    { s.events.Off(h) }

func (s *Session) Connect(ctx context.Context, address string) error {
	return s.sig.Connect(ctx, address)
}

// Disconnect closes the relay connection, the call is gone with it.
func (s *Session) Disconnect() { s.sig.Disconnect() }

// Authenticate logs the user in. The ICE servers the relay gives
// are used for the next calls.
func (s *Session) Authenticate(ctx context.Context, identity, token string) (api.User, error) {
	rs, err := s.sig.Authenticate(ctx, identity, token)
	if err != nil {
		return api.User{}, err
	}
	s.neg.SetIceServers(rs.IceServers)
	return *rs.User, nil
}

// Logout hangs up the current call and logs the user out.
func (s *Session) Logout(ctx context.Context) error {
	if id := s.callId(); id != "" {
		if err := s.sig.Hangup(id, "logout"); err != nil {
			s.log.Warn().Err(err).Str(logger.CallField, id).Msg("hangup on logout")
		}
		s.emit(s.finish(byId(id), "logout", false))
	}
	return s.sig.Logout(ctx)
}

func (s *Session) CurrentUser() *api.User { return s.sig.User() }

// CurrentCall returns a copy of the current call.
func (s *Session) CurrentCall() (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call == nil {
		return Call{}, false
	}
	return *s.call, true
}

// StartCall asks the relay to call the hardware. The receive and send
// options are used when the hardware answers with its offer.
func (s *Session) StartCall(ctx context.Context, hardwareId string, recvAudio, recvVideo, sendAudio bool) (Call, error) {
	user := s.sig.User()

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return Call{}, ErrClosed
	case s.call != nil || s.starting:
		s.mu.Unlock()
		return Call{}, ErrCallInProgress
	case user == nil:
		s.mu.Unlock()
		return Call{}, ErrUnauthenticated
	}
	s.starting, s.target = true, hardwareId
	s.want = media{recvAudio: recvAudio, recvVideo: recvVideo, sendAudio: sendAudio}
	s.mu.Unlock()

	info, err := s.sig.StartCall(ctx, hardwareId, recvAudio, recvVideo)

	s.order.Lock()
	s.mu.Lock()
	held := s.held
	s.starting, s.target, s.held = false, "", nil
	if err == nil && s.closed {
		err = ErrClosed
		_ = s.sig.Hangup(info.Id, "closed")
	}
	if err != nil {
		for _, e := range held {
			s.staleLocked(e.Kind().String(), "")
		}
		s.mu.Unlock()
		s.order.Unlock()
		s.log.Warn().Err(err).Msgf("Call to %v failed", hardwareId)
		return Call{}, err
	}
	if info.Hardware.Id == "" {
		info.Hardware.Id = hardwareId
	}
	if info.User.Id == "" {
		info.User = *user
	}
	s.call = &Call{Id: info.Id, User: info.User, Hardware: info.Hardware, Status: Pending}
	s.since = time.Now()
	call := *s.call
	s.mu.Unlock()

	s.metrics.callStarted()
	s.log.Info().Str(logger.CallField, call.Id).Msgf("Calling %v", hardwareId)
	var out []Event
	for _, e := range held {
		out = append(out, s.handle(e)...)
	}
	s.order.Unlock()
	s.emit(out)
	return call, nil
}

// ToggleOutgoingAudio mutes or unmutes the microphone. It is applied
// to the next answer too.
func (s *Session) ToggleOutgoingAudio(enabled bool) {
	s.mu.Lock()
	if s.call == nil {
		s.log.Warn().Msg("No call to toggle the audio of")
	}
	s.want.sendAudio = enabled
	s.mu.Unlock()
	s.neg.ToggleOutgoingAudio(enabled)
}

// ToggleIncomingMedia asks the hardware to start or stop sending its media.
func (s *Session) ToggleIncomingMedia(ctx context.Context, audio, video bool) error {
	if s.sig.User() == nil {
		return ErrUnauthenticated
	}
	id := s.callId()
	if id == "" {
		return ErrNoActiveCall
	}
	if err := s.sig.ToggleIncomingMedia(ctx, id, audio, video); err != nil {
		return err
	}
	s.mu.Lock()
	s.want.recvAudio, s.want.recvVideo = audio, video
	s.mu.Unlock()
	return nil
}

// HangupCall ends the current call. The call is gone locally even
// if the relay could not be told.
func (s *Session) HangupCall(reason string) error {
	if s.sig.User() == nil {
		return ErrUnauthenticated
	}
	id := s.callId()
	if id == "" {
		return ErrNoActiveCall
	}
	err := s.sig.Hangup(id, reason)
	if err != nil {
		s.log.Warn().Err(err).Str(logger.CallField, id).Msg("hangup")
	}
	if reason == "" {
		reason = "hangup"
	}
	s.emit(s.finish(byId(id), reason, false))
	return err
}

// Close hangs up and stops listening to the relay and the negotiation.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for _, off := range s.subs {
		off()
	}
	s.cancel()
	if id := s.callId(); id != "" {
		_ = s.sig.Hangup(id, "closed")
		s.emit(s.finish(byId(id), "closed", false))
	}
	s.neg.Close()
}

func (s *Session) callId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.call == nil {
		return ""
	}
	return s.call.Id
}

// onSignal handles the relay event and then emits what it caused,
// listeners run outside of the order lock so they may call back into
// the session.
func (s *Session) onSignal(e signaling.Event) {
	s.order.Lock()
	out := s.handle(e)
	s.order.Unlock()
	s.emit(out)
}

func (s *Session) emit(out []Event) {
	for _, e := range out {
		s.events.Emit(e)
	}
}

// handle applies the relay event and returns the session events to emit.
func (s *Session) handle(e signaling.Event) []Event {
	switch e := e.(type) {
	case signaling.Connected:
		return []Event{Connected{}}
	case signaling.Disconnected:
		return append(s.finish(anyCall, "disconnected", false), Disconnected{Err: e.Err})
	case signaling.PeerOnline:
		return []Event{PeerOnline{Hardware: e.Hardware}}
	case signaling.PeerOffline:
		return s.peerOffline(e)
	case signaling.CallAccepted:
		s.accepted(e)
	case signaling.CallHangup:
		s.mu.Lock()
		ok := s.matchLocked(e, e.CallId)
		s.mu.Unlock()
		if ok {
			reason := e.Reason
			if reason == "" {
				reason = "remote hangup"
			}
			return s.finish(byId(e.CallId), reason, true)
		}
	case signaling.RemoteCandidate:
		s.mu.Lock()
		if !s.matchLocked(e, e.CallId) {
			s.mu.Unlock()
			return nil
		}
		s.apply.Lock()
		s.mu.Unlock()
		s.neg.AddRemoteCandidate(e.Candidate)
		s.apply.Unlock()
	}
	return nil
}

// matchLocked tells if the event is for the current call.
func (s *Session) matchLocked(e signaling.Event, callId string) bool {
	switch {
	case s.call != nil && s.call.Id == callId:
		return true
	case s.call == nil && s.starting:
		s.held = append(s.held, e)
		s.log.Debug().Str(logger.CallField, callId).Msgf("Held %v", e.Kind())
	default:
		s.staleLocked(e.Kind().String(), callId)
	}
	return false
}

func (s *Session) staleLocked(kind, callId string) {
	current := ""
	if s.call != nil {
		current = s.call.Id
	}
	s.log.Warn().Str(logger.CallField, current).Msgf("Dropped %v of call [%v]", kind, callId)
	s.metrics.staleMessage(kind)
}

func (s *Session) peerOffline(e signaling.PeerOffline) []Event {
	s.mu.Lock()
	if s.call == nil && s.starting && s.target == e.Hardware.Id {
		s.held = append(s.held, e)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	out := s.finish(func(c *Call) bool { return c.Hardware.Id == e.Hardware.Id }, "peer offline", true)
	return append(out, PeerOffline{Hardware: e.Hardware})
}

// accepted answers the offer of the hardware.
func (s *Session) accepted(e signaling.CallAccepted) {
	s.mu.Lock()
	if !s.matchLocked(e, e.CallId) {
		s.mu.Unlock()
		return
	}
	if s.call.Status != Pending {
		s.staleLocked(e.Kind().String(), e.CallId)
		s.mu.Unlock()
		return
	}
	s.call.Status = Starting
	want := s.want
	s.mu.Unlock()

	if want.recvVideo && !e.Description.HasMedia(string(negotiation.Video)) {
		s.log.Warn().Str(logger.CallField, e.CallId).Msg("No video in the offer")
	}
	s.neg.MarkNegotiationStarted()
	go s.answer(e.CallId, e.Description, want.sendAudio)
}

func (s *Session) answer(callId string, offer api.Description, sendAudio bool) {
	answer, err := s.neg.InitiateAnswer(s.ctx, offer, sendAudio)
	if errors.Is(err, negotiation.ErrSuperseded) {
		s.log.Debug().Str(logger.CallField, callId).Msg("Answer is not needed anymore")
		return
	}
	if err != nil {
		s.fail(callId, err)
		return
	}
	if s.callId() != callId {
		return
	}
	if err = s.sig.SendDescription(s.ctx, callId, answer); err != nil {
		s.fail(callId, err)
		return
	}
	s.log.Debug().Str(logger.CallField, callId).Msg("Answer sent")
}

// fail ends the call with the error.
func (s *Session) fail(callId string, err error) {
	s.mu.Lock()
	if s.call == nil || s.call.Id != callId {
		s.mu.Unlock()
		return
	}
	call := *s.call
	call.Status, call.LastError = Failed, err
	s.call = nil
	s.release()
	s.mu.Unlock()

	s.metrics.callFailed()
	s.log.Error().Err(err).Str(logger.CallField, callId).Msg("Call failed")
	if herr := s.sig.Hangup(callId, "failed"); herr != nil {
		s.log.Warn().Err(herr).Str(logger.CallField, callId).Msg("hangup")
	}
	s.events.Emit(Error{Err: &CallError{CallId: callId, Err: err}})
	s.events.Emit(Hangup{Call: call, Reason: "failed"})
}

// finish ends the call if it matches, releasing the negotiation.
// The returned Hangup is for the caller to emit.
func (s *Session) finish(match func(*Call) bool, reason string, remote bool) []Event {
	s.mu.Lock()
	if s.call == nil || !match(s.call) {
		s.mu.Unlock()
		return nil
	}
	call := *s.call
	call.Status = Finished
	s.call = nil
	s.release()
	s.mu.Unlock()

	s.metrics.callFinished(reason)
	s.log.Info().Str(logger.CallField, call.Id).Msgf("Call finished: %v", reason)
	return []Event{Hangup{Call: call, Reason: reason, Remote: remote}}
}

// release closes the negotiation once the candidate being applied is in.
// It is called with s.mu held.
func (s *Session) release() {
	s.apply.Lock()
	s.neg.Close()
	s.apply.Unlock()
}

func byId(id string) func(*Call) bool { return func(c *Call) bool { return c.Id == id } }

func anyCall(*Call) bool { return true }

func (s *Session) onLocalMedia(e negotiation.Event) {
	id := s.callId()
	if id == "" {
		return
	}
	s.events.Emit(LocalMedia{CallId: id, Stream: e.(negotiation.LocalMediaReady).Stream})
}

// onRemoteMedia makes the call active with its first remote track.
func (s *Session) onRemoteMedia(e negotiation.Event) {
	track := e.(negotiation.RemoteMediaReady).Track
	s.mu.Lock()
	if s.call == nil {
		s.staleLocked("RemoteMedia", "")
		s.mu.Unlock()
		return
	}
	first := s.call.Status == Starting
	if first {
		s.call.Status = Active
	}
	id, since := s.call.Id, s.since
	s.mu.Unlock()

	if first {
		s.metrics.callActive(since)
		s.log.Info().Str(logger.CallField, id).Msg("Call is active")
	}
	s.events.Emit(RemoteMedia{CallId: id, Track: track})
}

func (s *Session) onCandidate(e negotiation.Event) {
	c := e.(negotiation.CandidateDiscovered).Candidate
	id := s.callId()
	if id == "" {
		s.log.Debug().Msg("Dropped a local candidate of no call")
		s.metrics.staleMessage("LocalCandidate")
		return
	}
	if err := s.sig.SendCandidate(s.ctx, id, c); err != nil {
		s.log.Warn().Err(err).Str(logger.CallField, id).Msg("candidate")
		return
	}
	s.metrics.candidateSent()
}
