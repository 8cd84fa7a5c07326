package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/p2pcall/p2pcall/pkg/logger"
)

const (
	maxMessageSize = 64 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
)

var ErrClosed = errors.New("websocket closed")

// WS is a websocket connection with serialized reads and writes.
// Reads are pumped into the message handler, writes go through a queue.
type WS struct {
	conn link
	send chan []byte
	log  *logger.Logger

	onMessage MessageHandler
	pingPong  bool
	server    bool

	once      sync.Once
	listening atomic.Bool
	stop      chan struct{}
	shutdown  sync.WaitGroup
	Done      chan struct{}
}

type MessageHandler func(message []byte)

// link is a connection whose writes are bound by a deadline.
type link struct {
	*websocket.Conn
	wait time.Duration
}

func (l link) put(kind int, data []byte) error {
	if err := l.SetWriteDeadline(time.Now().Add(l.wait)); err != nil {
		return err
	}
	return l.WriteMessage(kind, data)
}

var DefaultUpgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	WriteBufferPool: &sync.Pool{},
}

// NewServerWithConn wraps an upgraded server-side connection.
// The server side keeps the link alive with pings.
func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) *WS {
	ws := newSocket(conn, true, log)
	ws.server = true
	return ws
}

// NewClient dials the address. The returned socket stays idle until Listen.
func NewClient(ctx context.Context, address url.URL, header http.Header, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, address.String(), header)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	return &WS{
		conn:     link{Conn: conn, wait: writeWait},
		send:     make(chan []byte, 32),
		log:      log,
		pingPong: pingPong,
		stop:     make(chan struct{}),
		Done:     make(chan struct{}),
	}
}

func (ws *WS) IsServer() bool { return ws.server }

// SetMessageHandler must be called before Listen.
func (ws *WS) SetMessageHandler(fn MessageHandler) { ws.onMessage = fn }

// Listen starts the read and write pumps and returns the channel
// closed when both of them are gone.
func (ws *WS) Listen() chan struct{} {
	ws.listening.Store(true)
	ws.shutdown.Add(2)
	go ws.writer()
	go ws.reader()
	go func() {
		ws.shutdown.Wait()
		close(ws.Done)
	}()
	return ws.Done
}

// reader pumps messages from the websocket connection to the message handler.
func (ws *WS) reader() {
	defer func() {
		ws.Close()
		ws.shutdown.Done()
		ws.log.Debug().Msg("[ws] close reader")
	}()
	conn := ws.conn
	conn.SetReadLimit(maxMessageSize)
	if ws.pingPong {
		_ = conn.SetReadDeadline(time.Now().Add(pongTime))
		conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongTime)) })
	}
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Error().Err(err).Msg("[ws] read")
			}
			return
		}
		if ws.onMessage != nil {
			ws.onMessage(message)
		}
	}
}

// writer pumps messages from the send queue to the websocket connection.
func (ws *WS) writer() {
	var tick <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		_ = ws.conn.Close()
		ws.shutdown.Done()
		ws.log.Debug().Msg("[ws] close writer")
	}()
	for {
		select {
		case message := <-ws.send:
			if err := ws.conn.put(websocket.TextMessage, message); err != nil {
				ws.log.Error().Err(err).Msg("[ws] write")
				ws.Close()
				return
			}
		case <-tick:
			if err := ws.conn.put(websocket.PingMessage, nil); err != nil {
				ws.Close()
				return
			}
		case <-ws.stop:
			_ = ws.conn.put(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Write queues the message, it fails once the socket is closing.
func (ws *WS) Write(data []byte) error {
	select {
	case <-ws.stop:
		return ErrClosed
	default:
	}
	select {
	case ws.send <- data:
		return nil
	case <-ws.stop:
		return ErrClosed
	}
}

// Close asks both pumps to stop. Safe to call many times.
func (ws *WS) Close() {
	ws.once.Do(func() {
		close(ws.stop)
		if !ws.listening.Load() {
			_ = ws.conn.Close()
			close(ws.Done)
		}
	})
}
