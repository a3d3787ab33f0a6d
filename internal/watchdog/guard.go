package watchdog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/nsyasa/okul-bilgi-pano/internal/clock"
)

const (
	Cooldown         = 2 * time.Minute
	DefaultMaxPerDay = 10
)

var (
	ErrCooldown   = errors.New("watchdog: reload cooldown active")
	ErrDailyLimit = errors.New("watchdog: daily reload limit reached")
)

// KV is the persistence the guard keeps its daily counter in.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type dailyCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type GuardStatus struct {
	Day       string `json:"day"`
	Count     int    `json:"count"`
	MaxPerDay int    `json:"max_per_day"`
}

// Guard enforces the two reload limits: one reload per cooldown window and
// at most maxPerDay reloads per display-timezone calendar day.
type Guard struct {
	kv        KV
	key       string
	maxPerDay int
	loc       *time.Location

	mu      sync.Mutex
	limiter *rate.Limiter
	day     dailyCount
	loaded  bool
}

func NewGuard(kv KV, key string, maxPerDay int, loc *time.Location) *Guard {
	if maxPerDay <= 0 {
		maxPerDay = DefaultMaxPerDay
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Guard{
		kv:        kv,
		key:       key,
		maxPerDay: maxPerDay,
		loc:       loc,
		limiter:   rate.NewLimiter(rate.Every(Cooldown), 1),
	}
}

// Allow consumes one reload if both limits permit it. The daily limit is
// checked first so a refused day never burns the cooldown token.
func (g *Guard) Allow(ctx context.Context, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.syncDayLocked(ctx, now)
	if g.day.Count >= g.maxPerDay {
		return fmt.Errorf("%w (%d/%d on %s)", ErrDailyLimit, g.day.Count, g.maxPerDay, g.day.Day)
	}
	if !g.limiter.AllowN(now, 1) {
		return ErrCooldown
	}

	g.day.Count++
	g.persistLocked(ctx)
	return nil
}

func (g *Guard) Status(ctx context.Context, now time.Time) GuardStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.syncDayLocked(ctx, now)
	return GuardStatus{Day: g.day.Day, Count: g.day.Count, MaxPerDay: g.maxPerDay}
}

// syncDayLocked loads the persisted counter once and starts a fresh count
// whenever the day key moves on.
func (g *Guard) syncDayLocked(ctx context.Context, now time.Time) {
	today := clock.DayKey(now, g.loc)
	if !g.loaded {
		g.loaded = true
		g.day = g.readLocked(ctx)
	}
	if g.day.Day != today {
		g.day = dailyCount{Day: today}
	}
}

func (g *Guard) readLocked(ctx context.Context) dailyCount {
	if g.kv == nil {
		return dailyCount{}
	}
	raw, ok, err := g.kv.Get(ctx, g.key)
	if err != nil {
		log.Warn().Err(err).Str("key", g.key).Msg("failed to read reload counter")
		return dailyCount{}
	}
	if !ok {
		return dailyCount{}
	}
	var dc dailyCount
	if err := json.Unmarshal([]byte(raw), &dc); err != nil {
		log.Warn().Err(err).Str("key", g.key).Msg("discarding malformed reload counter")
		return dailyCount{}
	}
	return dc
}

func (g *Guard) persistLocked(ctx context.Context) {
	if g.kv == nil {
		return
	}
	data, err := json.Marshal(g.day)
	if err != nil {
		return
	}
	if err := g.kv.Set(ctx, g.key, string(data)); err != nil {
		log.Warn().Err(err).Str("key", g.key).Msg("failed to persist reload counter")
	}
}
