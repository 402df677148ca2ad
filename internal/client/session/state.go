package session

import (
	"fmt"

	"github.com/dmitrijs2005/molecheck/internal/client/models"
)

type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is a read-only view of the manager. User is zero unless State
// is StateAuthenticated.
type Snapshot struct {
	State State
	User  models.User
}

func (s Snapshot) Authenticated() bool { return s.State == StateAuthenticated }

// Settled reports whether the initial load has completed.
func (s Snapshot) Settled() bool {
	return s.State == StateAuthenticated || s.State == StateUnauthenticated
}
