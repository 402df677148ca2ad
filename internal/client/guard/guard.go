// Package guard routes between the sign-in screens and the protected part
// of the client based on the session state.
package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/molecheck/internal/client/session"
)

// Group is a set of screens (commands) sharing an access rule.
type Group int

const (
	// GroupAuth holds the sign-in and registration screens.
	GroupAuth Group = iota
	// GroupProtected holds everything that needs a session.
	GroupProtected
)

func (g Group) String() string {
	switch g {
	case GroupAuth:
		return "auth"
	case GroupProtected:
		return "protected"
	default:
		return fmt.Sprintf("Group(%d)", int(g))
	}
}

type Decision int

const (
	// Stay: the current group is allowed.
	Stay Decision = iota
	// Wait: the session is still loading; render nothing.
	Wait
	RedirectSignIn
	RedirectMain
)

func (d Decision) String() string {
	switch d {
	case Stay:
		return "stay"
	case Wait:
		return "wait"
	case RedirectSignIn:
		return "redirect to sign-in"
	case RedirectMain:
		return "redirect to main"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Resolve is the routing rule.
func Resolve(state session.State, group Group) Decision {
	switch state {
	case session.StateAuthenticated:
		if group == GroupAuth {
			return RedirectMain
		}
		return Stay
	case session.StateUnauthenticated:
		if group == GroupProtected {
			return RedirectSignIn
		}
		return Stay
	default:
		return Wait
	}
}

// target is the group a redirect lands in.
func (d Decision) target(current Group) Group {
	switch d {
	case RedirectSignIn:
		return GroupAuth
	case RedirectMain:
		return GroupProtected
	default:
		return current
	}
}

// Source is the part of session.Manager the guard observes.
type Source interface {
	Current() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
}

// Navigator is told about redirects caused by session changes.
type Navigator func(d Decision, to Group)

// Guard re-evaluates Resolve whenever the session changes (Run) or the
// current group changes (Enter). Enter leaves routing to its caller; Run
// hands redirects to the Navigator.
type Guard struct {
	src Source
	nav Navigator

	mu    sync.Mutex
	group Group
}

func New(src Source, initial Group, nav Navigator) *Guard {
	if nav == nil {
		nav = func(Decision, Group) {}
	}
	return &Guard{src: src, nav: nav, group: initial}
}

func (g *Guard) Group() Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.group
}

// Enter moves to group and returns the decision. On a redirect the guard
// lands in the target group instead.
func (g *Guard) Enter(group Group) Decision {
	return g.evaluate(g.src.Current(), &group, false)
}

// Run follows session changes until ctx is done.
func (g *Guard) Run(ctx context.Context) error {
	ch, cancel := g.src.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			g.evaluate(snap, nil, true)
		}
	}
}

func (g *Guard) evaluate(snap session.Snapshot, enter *Group, notify bool) Decision {
	g.mu.Lock()
	if enter != nil {
		g.group = *enter
	}
	d := Resolve(snap.State, g.group)
	g.group = d.target(g.group)
	to := g.group
	g.mu.Unlock()

	if notify && (d == RedirectSignIn || d == RedirectMain) {
		g.nav(d, to)
	}
	return d
}
