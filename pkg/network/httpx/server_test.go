package httpx

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"testing"
)

func TestPublicAddr(t *testing.T) {
	tests := []struct {
		addr string
		port int
		want string
	}{
		{addr: "", want: "localhost"},
		{addr: ":", want: "localhost"},
		{addr: "", port: 393, want: "localhost:393"},
		{addr: ":9000", port: 9001, want: "localhost:9001"},
		{addr: "host:9000", port: 9001, want: "host:9001"},
		{addr: ":80", port: 80, want: "localhost"},
		{addr: "garbage:99a9a", want: "garbage"},
		{addr: "[::]", want: "[::]"},
		{addr: "[::1]:0", port: 4000, want: "[::1]:4000"},
	}
	for _, test := range tests {
		t.Run(test.addr+"/"+strconv.Itoa(test.port), func(t *testing.T) {
			if got := publicAddr(test.addr, test.port); got != test.want {
				t.Errorf("expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestServerServes(t *testing.T) {
	s, err := NewServer("127.0.0.1:0", func(*Server) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Run()
	defer func() { _ = s.Shutdown(context.Background()) }()

	if s.Addr != "127.0.0.1:"+strconv.Itoa(s.Port()) {
		t.Errorf("address %v doesn't have the bound port %v", s.Addr, s.Port())
	}
	res, err := http.Get("http://" + s.Addr)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if body, _ := io.ReadAll(res.Body); string(body) != "ok" {
		t.Errorf("body %q", body)
	}
}
