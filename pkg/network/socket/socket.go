// Package socket opens the UDP sockets for the single-port ICE mode.
package socket

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"syscall"
)

const (
	listenAttempts = 42
	udpBufferSize  = 16 * 1024 * 1024
)

var ErrNoPorts = errors.New("no available ports")

// ListenUDP opens a UDP socket on the port of all the interfaces.
func ListenUDP(port int) (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadBuffer(udpBufferSize)
	_ = conn.SetWriteBuffer(udpBufferSize)
	return conn, nil
}

// ListenUDPRoll opens a UDP socket on the port or, if that one is busy,
// on one of the ports next to it.
func ListenUDPRoll(port int) (*net.UDPConn, error) {
	conn, err := ListenUDP(port)
	if err == nil {
		return conn, nil
	}
	if !IsPortBusyError(err) {
		return nil, err
	}
	for i := port + 1; i < port+listenAttempts; i++ {
		if conn, err = ListenUDP(i); err == nil {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("%w in %v-%v", ErrNoPorts, port, port+listenAttempts-1)
}

// IsPortBusyError tests if the given error is one of
// the port busy errors.
func IsPortBusyError(err error) bool {
	var eOsSyscall *os.SyscallError
	if !errors.As(err, &eOsSyscall) {
		return false
	}
	var errno syscall.Errno
	if !errors.As(eOsSyscall, &errno) {
		return false
	}
	if errno == syscall.EADDRINUSE {
		return true
	}
	const WSAEADDRINUSE = 10048
	return runtime.GOOS == "windows" && errno == WSAEADDRINUSE
}
