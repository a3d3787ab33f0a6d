// Package bundle loads the player bundle from the content provider and falls
// back to the last cached copy when the provider is unreachable.
package bundle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nsyasa/okul-bilgi-pano/internal/clock"
	"github.com/nsyasa/okul-bilgi-pano/internal/metrics"
	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

// ErrNoCache is returned by a Cache that holds nothing under the key.
var ErrNoCache = errors.New("bundle: no cached bundle")

// Provider builds a complete bundle. Any failing collection fails the whole call.
type Provider interface {
	FetchBundle(ctx context.Context) (*model.PlayerBundle, error)
}

type Entry struct {
	Value     *model.PlayerBundle
	Timestamp time.Time
	IsStale   bool
}

type Cache interface {
	Save(ctx context.Context, key string, b *model.PlayerBundle) error
	Load(ctx context.Context, key string) (*Entry, error)
}

type Result struct {
	Bundle         *model.PlayerBundle `json:"bundle"`
	FromCache      bool                `json:"from_cache"`
	CacheTimestamp *time.Time          `json:"cache_timestamp,omitempty"`
	IsStale        bool                `json:"is_stale"`
}

// Health is the pair of resilience counters read by the watchdog.
type Health struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccessAt       time.Time `json:"last_success_at"`
}

type Loader struct {
	provider Provider
	cache    Cache
	key      string
	clock    clock.Clock
	metrics  *metrics.Metrics

	mu          sync.Mutex
	failures    int
	lastSuccess time.Time
}

// NewLoader creates a loader. The last-success timestamp starts at creation
// time so a fresh session is not considered overdue.
func NewLoader(provider Provider, cache Cache, key string, clk clock.Clock, m *metrics.Metrics) *Loader {
	if clk == nil {
		clk = clock.System{}
	}
	return &Loader{
		provider:    provider,
		cache:       cache,
		key:         key,
		clock:       clk,
		metrics:     m,
		lastSuccess: clk.Now(),
	}
}

// Load fetches a live bundle, or the cached one when the fetch fails, or an
// empty bundle when there is neither. It never returns a nil bundle.
func (l *Loader) Load(ctx context.Context) Result {
	b, err := l.provider.FetchBundle(ctx)
	if err == nil && b != nil {
		return l.succeeded(ctx, b)
	}
	if err == nil {
		err = errors.New("provider returned no bundle")
	}
	return l.failed(ctx, err)
}

func (l *Loader) succeeded(ctx context.Context, b *model.PlayerBundle) Result {
	now := l.clock.Now()
	b.Normalize()
	b.GeneratedAt = now

	if l.cache != nil {
		if err := l.cache.Save(ctx, l.key, b); err != nil {
			log.Warn().Err(err).Str("key", l.key).Msg("failed to cache bundle")
		}
	}

	l.mu.Lock()
	l.failures = 0
	l.lastSuccess = now
	l.mu.Unlock()

	l.metrics.SetFetchFailures(0)
	l.metrics.RecordBundleLoad(metrics.SourceLive)
	return Result{Bundle: b}
}

func (l *Loader) failed(ctx context.Context, fetchErr error) Result {
	l.mu.Lock()
	l.failures++
	failures := l.failures
	l.mu.Unlock()

	l.metrics.SetFetchFailures(failures)
	log.Warn().Err(fetchErr).Int("consecutive_failures", failures).Msg("bundle fetch failed")

	if l.cache != nil {
		entry, err := l.cache.Load(ctx, l.key)
		switch {
		case err == nil && entry != nil && entry.Value != nil:
			entry.Value.Normalize()
			ts := entry.Timestamp
			l.metrics.RecordBundleLoad(metrics.SourceCache)
			return Result{Bundle: entry.Value, FromCache: true, CacheTimestamp: &ts, IsStale: entry.IsStale}
		case err != nil && !errors.Is(err, ErrNoCache):
			log.Warn().Err(err).Str("key", l.key).Msg("failed to read cached bundle")
		}
	}

	l.metrics.RecordBundleLoad(metrics.SourceEmpty)
	return Result{Bundle: model.EmptyBundle()}
}

func (l *Loader) Health() Health {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Health{ConsecutiveFailures: l.failures, LastSuccessAt: l.lastSuccess}
}

// Reset starts a new session: no failures, last success now.
func (l *Loader) Reset() {
	now := l.clock.Now()
	l.mu.Lock()
	l.failures = 0
	l.lastSuccess = now
	l.mu.Unlock()
	l.metrics.SetFetchFailures(0)
}
