// Package signaling keeps the connection to the call relay.
//
// The relay confirms every new connection with a UserConnected packet,
// only after that the channel accepts requests. Relay pushes are turned
// into typed events and handed to the listeners in the relay's order.
package signaling

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/com"
	"github.com/p2pcall/p2pcall/pkg/event"
	"github.com/p2pcall/p2pcall/pkg/logger"
)

const logoutTimeout = 2 * time.Second

type Channel struct {
	log     *logger.Logger
	timeout time.Duration
	events  event.Hub[Kind, Event]

	mu             sync.Mutex
	client         *com.Client
	connected      bool
	authenticating bool
	user           *api.User
}

type Option func(*Channel)

// WithCallTimeout limits the time of every relay request
// and of the connection handshake.
func WithCallTimeout(d time.Duration) Option { return func(c *Channel) { c.timeout = d } }

func New(log *logger.Logger, opts ...Option) *Channel {
	c := &Channel{log: log.Module("signaling"), timeout: com.DefaultCallTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) On(k Kind, fn func(Event)) event.Handle { return c.events.On(k, fn) }
func (c *Channel) Off(h event.Handle)                    { c.events.Off(h) }

// Connect dials the relay and waits until it is ready to serve.
// An existing connection is closed first.
func (c *Channel) Connect(ctx context.Context, address string) error {
	addr, err := url.Parse(address)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	c.Disconnect()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client, err := com.Dial(ctx, *addr, nil, c.timeout, c.log)
	if err != nil {
		return &ConnectionError{Err: err}
	}

	ready := make(chan struct{})
	var once sync.Once
	client.OnPacket(func(p com.In) {
		if p.T == api.UserConnected {
			once.Do(func() { close(ready) })
			return
		}
		c.handlePush(p)
	})
	client.OnClose(func() { c.closed(client) })

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	client.Listen()

	select {
	case <-ready:
	case <-client.Done():
		c.release(client)
		return &ConnectionError{Err: com.ErrConnClosed}
	case <-ctx.Done():
		c.release(client)
		client.Close()
		return &ConnectionError{Err: ctx.Err()}
	}

	c.mu.Lock()
	if c.client != client {
		c.mu.Unlock()
		return &ConnectionError{Err: com.ErrConnClosed}
	}
	c.connected = true
	c.mu.Unlock()

	c.log.Info().Msgf("Connected to %v", addr.Host)
	c.events.Emit(Connected{})
	return nil
}

// Disconnect logs out if needed and closes the connection.
// It never fails and can be called any number of times.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	client, connected, user := c.client, c.connected, c.user
	c.client, c.connected, c.user = nil, false, nil
	c.mu.Unlock()

	if client == nil {
		return
	}
	if user != nil {
		ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		if _, err := client.Call(ctx, api.UserLogout, api.LogoutRequest{}); err != nil {
			c.log.Warn().Err(err).Msg("logout on disconnect")
		}
		cancel()
	}
	client.Close()
	if connected {
		c.log.Info().Msg("Disconnected")
		c.events.Emit(Disconnected{})
	}
}

// closed is called when the connection is gone on its own.
func (c *Channel) closed(client *com.Client) {
	c.mu.Lock()
	if c.client != client {
		c.mu.Unlock()
		return
	}
	connected := c.connected
	c.client, c.connected, c.user = nil, false, nil
	c.mu.Unlock()

	if connected {
		c.log.Warn().Msg("Relay connection lost")
		c.events.Emit(Disconnected{Err: ErrConnectionLost})
	}
}

func (c *Channel) release(client *com.Client) {
	c.mu.Lock()
	if c.client == client {
		c.client = nil
	}
	c.mu.Unlock()
}

func (c *Channel) IsConnected() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.connected }

// User returns the authenticated user or nil.
func (c *Channel) User() *api.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Channel) Authenticate(ctx context.Context, identity, token string) (api.LoginResponse, error) {
	c.mu.Lock()
	client := c.client
	switch {
	case !c.connected:
		c.mu.Unlock()
		return api.LoginResponse{}, ErrNotConnected
	case c.user != nil || c.authenticating:
		c.mu.Unlock()
		return api.LoginResponse{}, ErrAlreadyAuthenticated
	}
	c.authenticating = true
	c.mu.Unlock()

	defer func() { c.mu.Lock(); c.authenticating = false; c.mu.Unlock() }()

	rs, err := api.UnwrapChecked[api.LoginResponse](
		client.Call(ctx, api.UserLogin, api.LoginRequest{UserIdentity: identity, SecurityToken: token}))
	if err != nil {
		return api.LoginResponse{}, err
	}
	if reason, failed := rs.Failed(); failed {
		return api.LoginResponse{}, &AuthError{Reason: reason}
	}
	if rs.User == nil {
		return api.LoginResponse{}, fmt.Errorf("login: no user, %w", api.ErrMalformed)
	}

	c.mu.Lock()
	if c.client != client {
		c.mu.Unlock()
		return api.LoginResponse{}, ErrNotConnected
	}
	u := *rs.User
	c.user = &u
	c.mu.Unlock()

	c.log.Info().Str("user", u.Id).Msg("Authenticated")
	return *rs, nil
}

// Logout ends the relay session, the local one is dropped even if
// the relay fails.
func (c *Channel) Logout(ctx context.Context) error {
	client, err := c.authorized()
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.client == client {
		c.user = nil
	}
	c.mu.Unlock()
	data, err := client.Call(ctx, api.UserLogout, api.LogoutRequest{})
	return check(api.UserLogout, data, err)
}

func (c *Channel) StartCall(ctx context.Context, hardwareId string, audio, video bool) (api.CallInfo, error) {
	client, err := c.authorized()
	if err != nil {
		return api.CallInfo{}, err
	}
	rs, err := api.UnwrapChecked[api.StartCallResponse](
		client.Call(ctx, api.CallStart, api.StartCallRequest{HardwareId: hardwareId, Audio: audio, Video: video}))
	if err != nil {
		return api.CallInfo{}, err
	}
	if reason, failed := rs.Failed(); failed {
		return api.CallInfo{}, &RelayError{Op: api.CallStart, Reason: reason}
	}
	if rs.Call == nil || rs.Call.Id == "" {
		return api.CallInfo{}, fmt.Errorf("call start: no call, %w", api.ErrMalformed)
	}
	return *rs.Call, nil
}

// Hangup notifies the relay without waiting for anything.
func (c *Channel) Hangup(callId, reason string) error {
	client, err := c.authorized()
	if err != nil {
		return err
	}
	return client.Notify(api.CallHangup, api.HangupRequest{CallId: callId, Reason: reason})
}

func (c *Channel) SendDescription(ctx context.Context, callId string, d api.Description) error {
	return c.request(ctx, api.CallAnswer, api.AnswerRequest{CallId: callId, SdpAnswer: d})
}

func (c *Channel) SendCandidate(ctx context.Context, callId string, candidate api.Candidate) error {
	return c.request(ctx, api.CallIce, api.IceRequest{CallId: callId, Candidate: candidate})
}

// ToggleIncomingMedia asks the remote party to start or stop sending its media.
func (c *Channel) ToggleIncomingMedia(ctx context.Context, callId string, audio, video bool) error {
	return c.request(ctx, api.CallIncomingMedia, api.IncomingMediaRequest{CallId: callId, Audio: audio, Video: video})
}

func (c *Channel) request(ctx context.Context, t api.PT, payload any) error {
	client, err := c.authorized()
	if err != nil {
		return err
	}
	data, err := client.Call(ctx, t, payload)
	return check(t, data, err)
}

func (c *Channel) authorized() (*com.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, ErrNotConnected
	}
	if c.user == nil {
		return nil, ErrNotAuthenticated
	}
	return c.client, nil
}

func check(t api.PT, data []byte, err error) error {
	rs, err := api.UnwrapChecked[api.EmptyResponse](data, err)
	if err != nil {
		return err
	}
	if reason, failed := rs.Failed(); failed {
		return &RelayError{Op: t, Reason: reason}
	}
	return nil
}

func (c *Channel) handlePush(p com.In) {
	var e Event
	switch p.T {
	case api.HardwareOnline:
		if rq := api.Unwrap[api.HardwarePush](p.Payload); rq != nil {
			e = PeerOnline{Hardware: rq.Hardware}
		}
	case api.HardwareOffline:
		if rq := api.Unwrap[api.HardwarePush](p.Payload); rq != nil {
			e = PeerOffline{Hardware: rq.Hardware}
		}
	case api.CallAccepted:
		if rq := api.Unwrap[api.CallAcceptedPush](p.Payload); rq != nil {
			e = CallAccepted{CallId: rq.CallId, Description: rq.SdpOffer}
		}
	case api.CallHangup:
		if rq := api.Unwrap[api.HangupPush](p.Payload); rq != nil {
			e = CallHangup{CallId: rq.CallId, Reason: rq.Reason}
		}
	case api.CallIncomingIce:
		if rq := api.Unwrap[api.IncomingIcePush](p.Payload); rq != nil {
			e = RemoteCandidate{CallId: rq.CallId, Candidate: rq.Candidate}
		}
	default:
		c.log.Warn().Msgf("unexpected packet %v", p.T)
		return
	}
	if e == nil {
		c.log.Warn().Err(api.ErrMalformed).Msgf("%v", p.T)
		return
	}
	c.events.Emit(e)
}
