package watchdog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsyasa/okul-bilgi-pano/internal/bundle"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func healthy(now time.Time) bundle.Health {
	return bundle.Health{LastSuccessAt: now.Add(-time.Minute)}
}

func TestScenarioE(t *testing.T) {
	p := NewPolicy()
	d := p.Tick(t0, bundle.Health{ConsecutiveFailures: 5, LastSuccessAt: t0.Add(-6 * time.Minute)})
	assert.Equal(t, ActionReload, d.Action)
}

func TestStaleLastSuccess(t *testing.T) {
	p := NewPolicy()

	d := p.Tick(t0, bundle.Health{LastSuccessAt: t0.Add(-StaleAfter)})
	assert.Equal(t, ActionNone, d.Action, "exactly five minutes is not yet stale")

	d = p.Tick(t0, bundle.Health{LastSuccessAt: t0.Add(-StaleAfter - time.Second)})
	assert.Equal(t, Decision{Action: ActionReload, Reason: ReasonStale}, d)
}

func TestConsecutiveFailures(t *testing.T) {
	p := NewPolicy()
	h := healthy(t0)

	h.ConsecutiveFailures = 4
	assert.Equal(t, ActionNone, p.Tick(t0, h).Action)

	h.ConsecutiveFailures = 5
	assert.Equal(t, Decision{Action: ActionReload, Reason: ReasonFailures}, p.Tick(t0, h))
}

func TestScriptErrorsInTrailingWindow(t *testing.T) {
	p := NewPolicy()
	p.RecordScriptError(t0.Add(-11 * time.Minute))
	p.RecordScriptError(t0.Add(-9 * time.Minute))
	p.RecordScriptError(t0.Add(-time.Minute))

	assert.Equal(t, 2, p.ScriptErrors(t0))
	assert.Equal(t, ActionNone, p.Tick(t0, healthy(t0)).Action)

	p.RecordScriptError(t0)
	assert.Equal(t, Decision{Action: ActionReload, Reason: ReasonScriptErrors}, p.Tick(t0, healthy(t0)))

	later := t0.Add(2 * time.Minute)
	assert.Equal(t, 2, p.ScriptErrors(later))
	assert.Equal(t, ActionNone, p.Tick(later, healthy(later)).Action)
}

func TestRulePrecedence(t *testing.T) {
	p := NewPolicy()
	for i := 0; i < 3; i++ {
		p.RecordScriptError(t0)
	}
	d := p.Tick(t0, bundle.Health{ConsecutiveFailures: 7, LastSuccessAt: t0})
	assert.Equal(t, ReasonFailures, d.Reason)
}

func TestOverlayLifecycle(t *testing.T) {
	p := NewPolicy()
	h := bundle.Health{ConsecutiveFailures: 5, LastSuccessAt: t0}

	d := p.Tick(t0, h)
	require.Equal(t, ActionReload, d.Action)
	p.Blocked(d)
	assert.True(t, p.Overlay())

	h.ConsecutiveFailures = 2
	assert.Equal(t, ActionNone, p.Tick(t0, h).Action)
	assert.True(t, p.Overlay())

	h.ConsecutiveFailures = 0
	assert.Equal(t, ActionHideOverlay, p.Tick(t0, h).Action)
	assert.False(t, p.Overlay())
	assert.Equal(t, ActionNone, p.Tick(t0, h).Action)
}

func TestScriptErrorBlockIsSilent(t *testing.T) {
	p := NewPolicy()
	p.Blocked(Decision{Action: ActionReload, Reason: ReasonScriptErrors})
	assert.False(t, p.Overlay())

	p.Blocked(Decision{Action: ActionReload, Reason: ReasonStale})
	assert.True(t, p.Overlay())
}

func TestPolicyReset(t *testing.T) {
	p := NewPolicy()
	p.RecordScriptError(t0)
	p.Blocked(Decision{Reason: ReasonStale})
	p.Reset()
	assert.Zero(t, p.ScriptErrors(t0))
	assert.False(t, p.Overlay())
}

type memKV struct {
	data   map[string]string
	getErr error
	setErr error
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func TestGuardCooldown(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(newMemKV(), "reloads", 10, time.UTC)

	require.NoError(t, g.Allow(ctx, t0))
	assert.ErrorIs(t, g.Allow(ctx, t0.Add(30*time.Second)), ErrCooldown)
	assert.ErrorIs(t, g.Allow(ctx, t0.Add(119*time.Second)), ErrCooldown)
	assert.NoError(t, g.Allow(ctx, t0.Add(2*time.Minute+119*time.Second)))
	assert.Equal(t, 2, g.Status(ctx, t0).Count)
}

func TestGuardNeverTwiceInsideWindow(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(nil, "reloads", 100, time.UTC)

	var granted []time.Time
	for s := 0; s < 600; s += 7 {
		now := t0.Add(time.Duration(s) * time.Second)
		if g.Allow(ctx, now) == nil {
			granted = append(granted, now)
		}
	}
	require.NotEmpty(t, granted)
	for i := 1; i < len(granted); i++ {
		assert.GreaterOrEqual(t, granted[i].Sub(granted[i-1]), Cooldown)
	}
}

func TestGuardDailyLimit(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	g := NewGuard(kv, "reloads", 3, time.UTC)

	now := t0
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Allow(ctx, now))
		now = now.Add(Cooldown)
	}
	err := g.Allow(ctx, now)
	assert.ErrorIs(t, err, ErrDailyLimit)
	assert.ErrorIs(t, g.Allow(ctx, now.Add(5*time.Hour)), ErrDailyLimit)

	// counter survives a new guard on the same store
	g2 := NewGuard(kv, "reloads", 3, time.UTC)
	assert.ErrorIs(t, g2.Allow(ctx, now.Add(time.Hour)), ErrDailyLimit)

	assert.NoError(t, g.Allow(ctx, t0.Add(24*time.Hour)))
	assert.Equal(t, GuardStatus{Day: "2026-03-03", Count: 1, MaxPerDay: 3}, g.Status(ctx, t0.Add(24*time.Hour)))
}

func TestGuardDailyLimitDoesNotConsumeCooldown(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	kv.data["reloads"] = `{"day":"2026-03-02","count":1}`
	g := NewGuard(kv, "reloads", 1, time.UTC)

	assert.ErrorIs(t, g.Allow(ctx, t0), ErrDailyLimit)
	// first call of the next day is not throttled by the refused one
	assert.NoError(t, g.Allow(ctx, time.Date(2026, 3, 3, 0, 0, 30, 0, time.UTC)))
}

func TestGuardDayBoundaryUsesDisplayTimezone(t *testing.T) {
	ctx := context.Background()
	ist, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	g := NewGuard(nil, "reloads", 1, ist)

	// 20:30 UTC is 23:30 in Istanbul, 21:30 UTC is already the next day there
	require.NoError(t, g.Allow(ctx, time.Date(2026, 3, 2, 20, 30, 0, 0, time.UTC)))
	assert.ErrorIs(t, g.Allow(ctx, time.Date(2026, 3, 2, 20, 45, 0, 0, time.UTC)), ErrDailyLimit)
	assert.NoError(t, g.Allow(ctx, time.Date(2026, 3, 2, 21, 30, 0, 0, time.UTC)))
}

func TestGuardToleratesBrokenStore(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	kv.getErr = errors.New("connection reset")
	kv.setErr = errors.New("READONLY")
	g := NewGuard(kv, "reloads", 2, time.UTC)

	assert.NoError(t, g.Allow(ctx, t0))
	assert.NoError(t, g.Allow(ctx, t0.Add(Cooldown)))
	assert.ErrorIs(t, g.Allow(ctx, t0.Add(2*Cooldown)), ErrDailyLimit)
}

func TestGuardDiscardsMalformedCounter(t *testing.T) {
	kv := newMemKV()
	kv.data["reloads"] = "not json"
	g := NewGuard(kv, "reloads", 0, nil)

	assert.NoError(t, g.Allow(context.Background(), t0))
	assert.JSONEq(t, `{"day":"2026-03-02","count":1}`, kv.data["reloads"])
	assert.Equal(t, DefaultMaxPerDay, g.Status(context.Background(), t0).MaxPerDay)
}
