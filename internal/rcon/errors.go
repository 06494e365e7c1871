package rcon

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when an operation needs an open session.
	ErrNotConnected = errors.New("not connected")

	// ErrAuthFailed is returned when the server rejects the telnet password.
	// There is no point retrying without a new credential.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrTimeout is returned when a single bounded operation exceeded its
	// deadline. The connection itself is still usable.
	ErrTimeout = errors.New("operation timed out")
)

// NetError represents a socket-level failure. It is fatal to the current
// connection; callers must disconnect and reconnect explicitly.
type NetError struct {
	Op   string // "dial", "read", "write", "handshake"
	Addr string
	Err  error
}

func (e *NetError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetError) Unwrap() error { return e.Err }

func netErr(op, addr string, err error) *NetError {
	return &NetError{Op: op, Addr: addr, Err: err}
}
