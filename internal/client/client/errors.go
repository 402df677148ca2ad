package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	// ErrNoToken is returned by a TokenSource when nobody is signed in.
	ErrNoToken = errors.New("no bearer token")
)

// Kind classifies an *Error.
type Kind int

const (
	// KindNetwork: no response was received (unreachable, timeout, breaker open).
	KindNetwork Kind = iota + 1
	// KindServer: a non-auth error status from the diagnostics API.
	KindServer
	// KindAuth: credentials rejected, or a 401/403 on an authenticated call.
	KindAuth
	// KindLocal: the request never left the client, e.g. the saved session
	// could not be read.
	KindLocal
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindAuth:
		return "auth"
	case KindLocal:
		return "local"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the single error type returned by AuthClient and DiagnosticClient.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Message string // human readable, safe to show to the user
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error: status %d", e.Kind, e.Status)
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindAuth
	case ErrUnavailable:
		return e.Kind == KindNetwork
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

func IsAuth(err error) bool    { return kindOf(err) == KindAuth }
func IsNetwork(err error) bool { return kindOf(err) == KindNetwork }
func IsServer(err error) bool  { return kindOf(err) == KindServer }
func IsLocal(err error) bool   { return kindOf(err) == KindLocal }

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// networkError maps a failure that produced no response.
func networkError(err error, timeout time.Duration) *Error {
	e := &Error{Kind: KindNetwork, Err: err}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		e.Timeout = true
		e.Message = fmt.Sprintf("request timed out after %s, check your connection and try again", timeout)
	case errors.Is(err, context.Canceled):
		e.Message = "request cancelled"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		e.Message = "server is temporarily unavailable, try again later"
	default:
		e.Message = "cannot reach the server, check your connection and try again"
	}
	return e
}
