// Package watchdog decides when the display needs a full reload and rate
// limits those reloads so an unattended screen cannot loop forever.
package watchdog

import (
	"sync"
	"time"

	"github.com/nsyasa/okul-bilgi-pano/internal/bundle"
)

const (
	TickInterval         = 30 * time.Second
	StaleAfter           = 5 * time.Minute
	MaxFetchFailures     = 5
	ScriptErrorWindow    = 10 * time.Minute
	ScriptErrorThreshold = 3
)

type Reason string

const (
	ReasonStale        Reason = "stale"
	ReasonFailures     Reason = "fetch_failures"
	ReasonScriptErrors Reason = "script_errors"
	ReasonManual       Reason = "manual"
)

// Silent reports whether a blocked reload for this reason leaves the
// reconnecting overlay hidden.
func (r Reason) Silent() bool { return r == ReasonScriptErrors }

type Action int

const (
	ActionNone Action = iota
	ActionReload
	ActionHideOverlay
)

func (a Action) String() string {
	switch a {
	case ActionReload:
		return "reload"
	case ActionHideOverlay:
		return "hide_overlay"
	}
	return "none"
}

type Decision struct {
	Action Action
	Reason Reason
}

// Policy evaluates the resilience counters and the script error log. It also
// owns the reconnecting overlay flag.
type Policy struct {
	mu      sync.Mutex
	errors  []time.Time
	overlay bool
}

func NewPolicy() *Policy {
	return &Policy{}
}

// RecordScriptError logs an uncaught script error reported by the display.
func (p *Policy) RecordScriptError(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, at)
}

// ScriptErrors counts the errors inside the trailing window ending at now.
func (p *Policy) ScriptErrors(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked(now)
	return p.countLocked(now)
}

// Tick runs one watchdog evaluation. Rules are checked in order and the
// first that matches wins.
func (p *Policy) Tick(now time.Time, h bundle.Health) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked(now)

	switch {
	case now.Sub(h.LastSuccessAt) > StaleAfter:
		return Decision{Action: ActionReload, Reason: ReasonStale}
	case h.ConsecutiveFailures >= MaxFetchFailures:
		return Decision{Action: ActionReload, Reason: ReasonFailures}
	case p.countLocked(now) >= ScriptErrorThreshold:
		return Decision{Action: ActionReload, Reason: ReasonScriptErrors}
	case p.overlay && h.ConsecutiveFailures == 0:
		p.overlay = false
		return Decision{Action: ActionHideOverlay}
	}
	return Decision{}
}

// Blocked records that the guard refused a reload. The overlay goes up
// unless the reason is a silent one.
func (p *Policy) Blocked(d Decision) {
	if d.Reason.Silent() {
		return
	}
	p.mu.Lock()
	p.overlay = true
	p.mu.Unlock()
}

func (p *Policy) Overlay() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlay
}

// Reset clears the session state after a reload went through.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = nil
	p.overlay = false
}

func (p *Policy) pruneLocked(now time.Time) {
	cutoff := now.Add(-ScriptErrorWindow)
	kept := p.errors[:0]
	for _, t := range p.errors {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	p.errors = kept
}

func (p *Policy) countLocked(now time.Time) int {
	n := 0
	for _, t := range p.errors {
		if !t.After(now) {
			n++
		}
	}
	return n
}
