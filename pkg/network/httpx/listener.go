package httpx

import (
	"fmt"
	"net"
	"strconv"

	"github.com/p2pcall/p2pcall/pkg/network/socket"
)

const maxPortRollAttempts = 42

type Listener struct {
	net.Listener
}

// NewListener listens on the TCP address. With rollPorts a busy port
// is replaced by the first free one next to it.
func NewListener(address string, rollPorts bool) (*Listener, error) {
	ls, err := net.Listen("tcp4", address)
	if err == nil {
		return &Listener{ls}, nil
	}
	if !rollPorts || !socket.IsPortBusyError(err) {
		return nil, err
	}
	host, p, serr := net.SplitHostPort(address)
	if serr != nil {
		return nil, serr
	}
	port, serr := strconv.Atoi(p)
	if serr != nil {
		return nil, serr
	}
	for i := port + 1; i < port+maxPortRollAttempts; i++ {
		if ls, err = net.Listen("tcp4", net.JoinHostPort(host, strconv.Itoa(i))); err == nil {
			return &Listener{ls}, nil
		}
	}
	return nil, fmt.Errorf("%w in %v-%v", socket.ErrNoPorts, port, port+maxPortRollAttempts-1)
}

func (l Listener) GetPort() int {
	if l.Listener == nil {
		return 0
	}
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
