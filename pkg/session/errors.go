package session

import (
	"errors"
	"fmt"

	"github.com/p2pcall/p2pcall/pkg/signaling"
)

var (
	ErrCallInProgress  = errors.New("call in progress")
	ErrNoActiveCall    = errors.New("no active call")
	ErrUnauthenticated = fmt.Errorf("session: %w", signaling.ErrNotAuthenticated)
)

// CallError is a failure which ended the call.
type CallError struct {
	CallId string
	Err    error
}

func (e *CallError) Error() string { return fmt.Sprintf("call %v: %v", e.CallId, e.Err) }
func (e *CallError) Unwrap() error { return e.Err }
