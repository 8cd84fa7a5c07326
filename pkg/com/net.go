package com

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/network/websocket"
)

const (
	DefaultCallTimeout = 5 * time.Second
	inboxSize          = 128
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrTimeout    = errors.New("timeout")
)

type (
	In struct {
		Id      Uid             `json:"id,omitempty"`
		T       api.PT          `json:"t"`
		Payload json.RawMessage `json:"p,omitempty"`
	}
	Out struct {
		Id      string `json:"id,omitempty"`
		T       api.PT `json:"t"`
		Payload any    `json:"p,omitempty"`
	}
)

// Client is a packet client on top of a websocket.
// Calls are correlated with their responses by the packet id,
// everything else is handed to the packet handler on a separate
// goroutine, so handlers are free to make calls.
type Client struct {
	ws       *websocket.WS
	log      *logger.Logger
	queue    Map[Uid, *call]
	timeout  time.Duration
	inbox    chan In
	onPacket func(packet In)
	onClose  func()
	mu       sync.Mutex
	done     chan struct{}
}

type call struct {
	done     chan struct{}
	err      error
	response In
}

// Dial connects to the address, the client stays idle until Listen.
func Dial(ctx context.Context, address url.URL, header http.Header, timeout time.Duration, log *logger.Logger) (*Client, error) {
	ws, err := websocket.NewClient(ctx, address, header, log)
	if err != nil {
		return nil, err
	}
	return NewClient(ws, timeout, log), nil
}

func NewClient(ws *websocket.WS, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	dir := "→"
	if ws.IsServer() {
		dir = "←"
	}
	return &Client{
		ws:      ws,
		log:     log.Extend(log.With().Str("cid", NewUid().Short()).Str(logger.DirectionField, dir)),
		timeout: timeout,
		inbox:   make(chan In, inboxSize),
		done:    make(chan struct{}),
	}
}

// OnPacket sets the handler of packets which are not call responses.
func (c *Client) OnPacket(fn func(packet In)) { c.mu.Lock(); c.onPacket = fn; c.mu.Unlock() }

// OnClose sets the function called once the connection is gone
// and every pending call is cancelled.
func (c *Client) OnClose(fn func()) { c.mu.Lock(); c.onClose = fn; c.mu.Unlock() }

func (c *Client) Listen() {
	c.ws.SetMessageHandler(c.handleMessage)
	wsDone := c.ws.Listen()
	dispatched := make(chan struct{})
	go c.dispatch(dispatched)
	go func() {
		<-wsDone
		c.drain(ErrConnClosed)
		close(c.inbox)
		<-dispatched
		c.mu.Lock()
		fn := c.onClose
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
		c.log.Debug().Str(logger.DirectionField, "x").Msg("Close")
		close(c.done)
	}()
}

func (c *Client) dispatch(done chan struct{}) {
	defer close(done)
	for p := range c.inbox {
		c.mu.Lock()
		fn := c.onPacket
		c.mu.Unlock()
		c.log.Debug().Str(logger.DirectionField, "←").Msgf("%v", p.T)
		if fn != nil {
			fn(p)
		}
	}
}

// Close drops the connection. Safe to call many times.
func (c *Client) Close() { c.ws.Close() }

// Done is closed after the connection is gone and the packet handler
// has processed everything it was given.
func (c *Client) Done() <-chan struct{} { return c.done }

// Call makes a blocking request and returns the raw payload of the response.
func (c *Client) Call(ctx context.Context, t api.PT, payload any) ([]byte, error) {
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("ᵇ%v", t)
	id := NewUid()
	r, err := json.Marshal(Out{Id: id.String(), T: t, Payload: payload})
	if err != nil {
		return nil, err
	}

	task := &call{done: make(chan struct{})}
	c.queue.Put(id, task)
	if err = c.ws.Write(r); err != nil {
		c.queue.RemoveByKey(id)
		return nil, ErrConnClosed
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-task.done:
		return task.response.Payload, task.err
	case <-timer.C:
		c.queue.RemoveByKey(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		c.queue.RemoveByKey(id)
		return nil, ctx.Err()
	}
}

// Notify just sends a packet and goes further.
func (c *Client) Notify(t api.PT, payload any) error {
	c.log.Debug().Str(logger.DirectionField, "→").Msgf("%v", t)
	return c.Send(Out{T: t, Payload: payload})
}

// Route answers the packet with the payload.
func (c *Client) Route(in In, payload any) error {
	return c.Send(Out{Id: in.Id.String(), T: in.T, Payload: payload})
}

func (c *Client) Send(packet Out) error {
	r, err := json.Marshal(packet)
	if err != nil {
		return err
	}
	if err = c.ws.Write(r); err != nil {
		return ErrConnClosed
	}
	return nil
}

func (c *Client) handleMessage(message []byte) {
	var res In
	if err := json.Unmarshal(message, &res); err != nil {
		c.log.Warn().Err(err).Msg("malformed packet")
		return
	}
	// empty id implies that nobody waits for the packet
	if !res.Id.IsEmpty() {
		if task, ok := c.queue.Pop(res.Id); ok {
			task.response = res
			close(task.done)
			return
		}
	}
	// never block the reader
	select {
	case c.inbox <- res:
	default:
		c.log.Warn().Msgf("Dropped %v, the packet handler is %v packets behind", res.T, inboxSize)
	}
}

// drain cancels all what's left in the task queue.
func (c *Client) drain(err error) {
	c.queue.Drain(func(_ Uid, task *call) {
		task.err = err
		close(task.done)
	})
}
