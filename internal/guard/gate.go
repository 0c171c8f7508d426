// Package guard decides, per screen, whether to show a loading indicator,
// redirect, or render the screen, based on the current session.
//
// The decision is an explicit state machine driven only by session
// snapshots. Navigation is a side effect of entering Redirecting and
// happens at most once per gate.
package guard

import (
	"sync"

	"github.com/atinyakov/GigBid/internal/session"
)

// State is the gate's current decision.
type State int

const (
	// Unresolved: the session is still being resolved; show the loading indicator.
	Unresolved State = iota
	// Authorized: the policy is satisfied; render the screen.
	Authorized
	// Unauthorized: the policy is violated; render nothing.
	Unauthorized
	// Redirecting: a navigation to the policy's target was issued. Terminal.
	Redirecting
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Authorized:
		return "authorized"
	case Unauthorized:
		return "unauthorized"
	case Redirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}

// Policy is a screen's access requirement.
type Policy struct {
	// RequireAuth true means the screen needs an identity; false means the
	// screen is for anonymous users only (login, signup).
	RequireAuth bool
	// RedirectTo is where to go when the requirement is not met. Empty
	// means stay Unauthorized without navigating.
	RedirectTo string
}

// Allows reports whether the policy admits a resolved session.
func (p Policy) Allows(snap session.Snapshot) bool {
	return p.RequireAuth == snap.Authenticated()
}

// Navigator moves the client to another screen.
type Navigator interface {
	Navigate(path string)
}

// Gate is the per-screen state machine.
type Gate struct {
	policy Policy
	nav    Navigator

	mu      sync.Mutex
	state   State
	version uint64
	seen    bool
}

// NewGate returns a gate in the Unresolved state.
func NewGate(policy Policy, nav Navigator) *Gate {
	return &Gate{policy: policy, nav: nav}
}

// Policy returns the gate's policy.
func (g *Gate) Policy() Policy {
	return g.policy
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Update feeds a session snapshot to the gate and returns the resulting
// state. Snapshots older than the last one applied are ignored.
func (g *Gate) Update(snap session.Snapshot) State {
	g.mu.Lock()
	if g.seen && snap.Version < g.version {
		st := g.state
		g.mu.Unlock()
		return st
	}
	g.seen = true
	g.version = snap.Version

	if g.state == Redirecting {
		g.mu.Unlock()
		return Redirecting
	}

	switch {
	case !snap.Resolved():
		g.state = Unresolved
	case g.policy.Allows(snap):
		g.state = Authorized
	default:
		g.state = Unauthorized
	}

	var target string
	if g.state == Unauthorized && g.policy.RedirectTo != "" {
		g.state = Redirecting
		target = g.policy.RedirectTo
	}
	st := g.state
	g.mu.Unlock()

	if target != "" && g.nav != nil {
		g.nav.Navigate(target)
	}
	return st
}
