package signaling

import (
	"errors"
	"fmt"

	"github.com/p2pcall/p2pcall/pkg/api"
)

var (
	ErrNotConnected         = errors.New("not connected")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrConnectionLost       = errors.New("connection lost")
)

// ConnectionError is a transport failure before the relay got ready.
type ConnectionError struct{ Err error }

func (e *ConnectionError) Error() string { return fmt.Sprintf("connection: %v", e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthError means the relay rejected the credentials.
type AuthError struct{ Reason string }

func (e *AuthError) Error() string { return "auth: " + e.Reason }

// RelayError is a failure reported by the relay for a request.
type RelayError struct {
	Op     api.PT
	Reason string
}

func (e *RelayError) Error() string { return fmt.Sprintf("relay: %v: %v", e.Op, e.Reason) }
