package clock

import (
	"errors"
	"sync"
	"time"
)

type PreviewMode string

const (
	PreviewFrozen  PreviewMode = "frozen"
	PreviewRunning PreviewMode = "running"
)

const MaxPreviewTTL = 24 * time.Hour

var ErrInvalidPreview = errors.New("invalid preview override")

// Override substitutes "now" with an operator-chosen instant until it expires.
type Override struct {
	At        time.Time     `json:"at"`
	Mode      PreviewMode   `json:"mode"`
	TTL       time.Duration `json:"ttl"`
	SetAt     time.Time     `json:"set_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Preview wraps a base clock and applies an optional time override. It is
// safe for concurrent use: the admin endpoint writes, the player loop reads.
type Preview struct {
	base Clock

	mu       sync.RWMutex
	override *Override
}

func NewPreview(base Clock) *Preview {
	if base == nil {
		base = System{}
	}
	return &Preview{base: base}
}

func (p *Preview) Now() time.Time {
	wall := p.base.Now()

	p.mu.RLock()
	o := p.override
	p.mu.RUnlock()

	if o == nil || !wall.Before(o.ExpiresAt) {
		return wall
	}
	if o.Mode == PreviewFrozen {
		return o.At
	}
	return o.At.Add(wall.Sub(o.SetAt))
}

// Set installs an override for ttl. ttl must be positive and at most MaxPreviewTTL.
func (p *Preview) Set(at time.Time, mode PreviewMode, ttl time.Duration) (Override, error) {
	if ttl <= 0 || ttl > MaxPreviewTTL {
		return Override{}, ErrInvalidPreview
	}
	if mode != PreviewFrozen && mode != PreviewRunning {
		return Override{}, ErrInvalidPreview
	}
	wall := p.base.Now()
	o := &Override{At: at, Mode: mode, TTL: ttl, SetAt: wall, ExpiresAt: wall.Add(ttl)}

	p.mu.Lock()
	p.override = o
	p.mu.Unlock()
	return *o, nil
}

func (p *Preview) Clear() {
	p.mu.Lock()
	p.override = nil
	p.mu.Unlock()
}

// Active returns the override in effect, if any.
func (p *Preview) Active() (Override, bool) {
	wall := p.base.Now()
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.override == nil || !wall.Before(p.override.ExpiresAt) {
		return Override{}, false
	}
	return *p.override, true
}
