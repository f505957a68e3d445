package selection

import (
	"fmt"
	"time"
)

// DefaultCooldown is the reference interval between confirmations.
const DefaultCooldown = 2 * time.Second

// CooldownGate rate-limits confirmations.
//
// It is Idle or Active(expiry). Fire moves it to Active; Refresh moves it
// back to Idle once now is past the expiry. Independently, a repeat of the
// last announced selection is refused until a full interval has passed.
// Not safe for concurrent use.
type CooldownGate struct {
	d      time.Duration
	active bool
	expiry time.Time

	last   Selection
	lastAt time.Time
	fired  bool
}

// NewCooldownGate returns an Idle gate with interval d.
func NewCooldownGate(d time.Duration) (*CooldownGate, error) {
	if d <= 0 {
		return nil, fmt.Errorf("selection: cooldown must be positive, got %s", d)
	}
	return &CooldownGate{d: d}, nil
}

// Duration returns the cooldown interval.
func (g *CooldownGate) Duration() time.Duration { return g.d }

// Refresh transitions Active to Idle when now is strictly after the expiry.
func (g *CooldownGate) Refresh(now time.Time) {
	if g.active && now.After(g.expiry) {
		g.active = false
	}
}

// Active reports whether the gate is rejecting confirmations.
func (g *CooldownGate) Active() bool { return g.active }

// Expiry returns the Active expiry, zero when Idle.
func (g *CooldownGate) Expiry() time.Time {
	if !g.active {
		return time.Time{}
	}
	return g.expiry
}

// Remaining returns the time left before expiry, 0 when Idle.
func (g *CooldownGate) Remaining(now time.Time) time.Duration {
	if !g.active {
		return 0
	}
	if left := g.expiry.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Allow reports whether sel may be confirmed at now.
func (g *CooldownGate) Allow(sel Selection, now time.Time) bool {
	if g.active {
		return false
	}
	if g.fired && sel == g.last && now.Sub(g.lastAt) < g.d {
		return false
	}
	return true
}

// Fire records a confirmation of sel at now and enters Active.
func (g *CooldownGate) Fire(sel Selection, now time.Time) {
	g.active = true
	g.expiry = now.Add(g.d)
	g.last = sel
	g.lastAt = now
	g.fired = true
}

// LastAnnounced returns the most recent confirmation, if any.
func (g *CooldownGate) LastAnnounced() (Selection, time.Time, bool) {
	return g.last, g.lastAt, g.fired
}

// GateState is a copy of the gate's state.
type GateState struct {
	Active bool
	Expiry time.Time
	Last   Selection
	LastAt time.Time
	Fired  bool
}

// State returns a copy of the gate's state.
func (g *CooldownGate) State() GateState {
	return GateState{Active: g.active, Expiry: g.expiry, Last: g.last, LastAt: g.lastAt, Fired: g.fired}
}
