package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/p2pcall/p2pcall/pkg/api"
	"github.com/p2pcall/p2pcall/pkg/com"
	"github.com/p2pcall/p2pcall/pkg/logger"
	"github.com/p2pcall/p2pcall/pkg/network/websocket"
)

// fakeRelay answers requests with canned payloads and records everything it gets.
type fakeRelay struct {
	address string
	noReady bool

	mu      sync.Mutex
	answers map[api.PT]any
	got     []com.In
	conn    *com.Client
	ws      *websocket.WS
}

func newFakeRelay(t *testing.T) *fakeRelay { t.Helper(); return newRelay(t, false) }

// newSilentRelay never confirms connections.
func newSilentRelay(t *testing.T) *fakeRelay { t.Helper(); return newRelay(t, true) }

func newRelay(t *testing.T, noReady bool) *fakeRelay {
	t.Helper()
	r := &fakeRelay{
		noReady: noReady,
		answers: map[api.PT]any{
			api.UserLogin:         api.LoginResponse{User: &api.User{Id: "u-1", UserIdentity: "alice"}},
			api.UserLogout:        api.EmptyResponse{},
			api.CallStart:         api.StartCallResponse{Call: &api.CallInfo{Id: "c-1", Hardware: api.Hardware{Id: "dev-1"}}},
			api.CallAnswer:        api.EmptyResponse{},
			api.CallIce:           api.EmptyResponse{},
			api.CallIncomingMedia: api.EmptyResponse{},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		conn, err := websocket.DefaultUpgrader.Upgrade(w, rq, nil)
		if err != nil {
			t.Errorf("no socket, %v", err)
			return
		}
		sock := websocket.NewServerWithConn(conn, logger.Nop())
		cl := com.NewClient(sock, time.Second, logger.Nop())
		cl.OnPacket(func(p com.In) {
			r.mu.Lock()
			r.got = append(r.got, p)
			answer, ok := r.answers[p.T]
			r.mu.Unlock()
			if ok && !p.Id.IsEmpty() {
				_ = cl.Route(p, answer)
			}
		})
		r.mu.Lock()
		r.conn, r.ws = cl, sock
		r.mu.Unlock()
		cl.Listen()
		if !r.noReady {
			_ = cl.Notify(api.UserConnected, nil)
		}
		<-cl.Done()
	}))
	t.Cleanup(server.Close)
	r.address = "ws" + strings.TrimPrefix(server.URL, "http")
	return r
}

func (r *fakeRelay) answer(t api.PT, payload any) {
	r.mu.Lock()
	r.answers[t] = payload
	r.mu.Unlock()
}

func (r *fakeRelay) push(t api.PT, payload any) {
	r.mu.Lock()
	cl := r.conn
	r.mu.Unlock()
	_ = cl.Notify(t, payload)
}

func (r *fakeRelay) drop() {
	r.mu.Lock()
	ws := r.ws
	r.mu.Unlock()
	ws.Close()
}

// received waits for a packet of the type t.
func (r *fakeRelay) received(t *testing.T, pt api.PT) com.In {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, p := range r.got {
			if p.T == pt {
				r.mu.Unlock()
				return p
			}
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("relay didn't receive %v", pt)
	return com.In{}
}
