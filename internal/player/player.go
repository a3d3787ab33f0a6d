// Package player runs the display session: a single event loop that owns the
// rotation controller, evaluates the bell schedule every second, refreshes
// the bundle and lets the watchdog recover a stuck screen.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nsyasa/okul-bilgi-pano/internal/bundle"
	"github.com/nsyasa/okul-bilgi-pano/internal/clock"
	"github.com/nsyasa/okul-bilgi-pano/internal/content"
	"github.com/nsyasa/okul-bilgi-pano/internal/metrics"
	"github.com/nsyasa/okul-bilgi-pano/internal/model"
	"github.com/nsyasa/okul-bilgi-pano/internal/mqtt"
	"github.com/nsyasa/okul-bilgi-pano/internal/rotation"
	"github.com/nsyasa/okul-bilgi-pano/internal/schedule"
	"github.com/nsyasa/okul-bilgi-pano/internal/scheduler"
	"github.com/nsyasa/okul-bilgi-pano/internal/watchdog"
	"github.com/nsyasa/okul-bilgi-pano/internal/weather"
)

const (
	KeyTick     = "player.tick"
	KeyRefresh  = "player.refresh"
	KeyWatchdog = "player.watchdog"
	KeyWeather  = "player.weather"
)

type Config struct {
	Location         *time.Location
	TickInterval     time.Duration
	RefreshInterval  time.Duration
	WatchdogInterval time.Duration
	WeatherInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Location:         time.UTC,
		TickInterval:     time.Second,
		RefreshInterval:  time.Minute,
		WatchdogInterval: watchdog.TickInterval,
		WeatherInterval:  weather.RefreshInterval,
	}
}

type Loader interface {
	Load(ctx context.Context) bundle.Result
	Health() bundle.Health
	Reset()
}

type WeatherSource interface {
	Current(ctx context.Context) (*weather.Reading, error)
}

// Notifier forwards control messages to the screen.
type Notifier interface {
	ModeChange(mode string) error
	Reload(reason string) error
	Status(s mqtt.Status) error
}

type Deps struct {
	Loader Loader
	Policy *watchdog.Policy
	Guard  *watchdog.Guard
	// Clock is the display clock and may carry a preview override. Wall
	// drives the watchdog and reload limits and is never overridden.
	Clock    clock.Clock
	Wall     clock.Clock
	Weather  WeatherSource
	Notifier Notifier
	Metrics  *metrics.Metrics
}

type fetchResult struct {
	result     bundle.Result
	generation uint64
}

type weatherResult struct {
	reading *weather.Reading
	err     error
}

type Player struct {
	cfg      Config
	loader   Loader
	policy   *watchdog.Policy
	guard    *watchdog.Guard
	clock    clock.Clock
	wall     clock.Clock
	weather  WeatherSource
	notifier Notifier
	metrics  *metrics.Metrics

	sched   *scheduler.Scheduler
	rot     *rotation.Controller
	inbox   chan func()
	results chan fetchResult
	weathRx chan weatherResult
	notify  chan func()

	// owned by the loop goroutine
	session    string
	generation uint64
	fetching   bool
	bundle     *model.PlayerBundle
	result     bundle.Result
	dayKey     string
	resolution schedule.Resolution
	warnedDay  string
	reading    *weather.Reading
	loopCtx    context.Context

	mu   sync.RWMutex
	snap Snapshot

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

func New(cfg Config, deps Deps) *Player {
	def := DefaultConfig()
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = def.WatchdogInterval
	}
	if cfg.WeatherInterval <= 0 {
		cfg.WeatherInterval = def.WeatherInterval
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Wall == nil {
		deps.Wall = clock.System{}
	}
	if deps.Policy == nil {
		deps.Policy = watchdog.NewPolicy()
	}
	if deps.Guard == nil {
		deps.Guard = watchdog.NewGuard(nil, "", 0, cfg.Location)
	}

	p := &Player{
		cfg:      cfg,
		loader:   deps.Loader,
		policy:   deps.Policy,
		guard:    deps.Guard,
		clock:    deps.Clock,
		wall:     deps.Wall,
		weather:  deps.Weather,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		sched:    scheduler.New(64),
		inbox:    make(chan func()),
		results:  make(chan fetchResult, 4),
		weathRx:  make(chan weatherResult, 1),
		notify:   make(chan func(), 32),
		session:  uuid.NewString(),
		bundle:   model.EmptyBundle(),
		subs:     make(map[int]chan Snapshot),
	}
	p.result = bundle.Result{Bundle: p.bundle}
	p.rot = rotation.New(p.sched, p.bundle.Rotation())
	p.rot.OnSwitch(p.modeSwitched)
	return p
}

// Run drives the session until ctx is cancelled. Every timer is cancelled
// on return.
func (p *Player) Run(ctx context.Context) error {
	defer p.sched.Close()
	go p.notifyLoop(ctx)

	p.loopCtx = ctx
	p.start(ctx)
	log.Info().Str("session", p.session).Msg("player started")

	for {
		select {
		case <-ctx.Done():
			p.rot.Stop()
			log.Info().Str("session", p.session).Msg("player stopped")
			return nil
		case ev := <-p.sched.Events():
			if p.sched.Live(ev) {
				p.handle(ctx, ev.Key)
			}
		case res := <-p.results:
			p.applyResult(res)
		case wr := <-p.weathRx:
			p.applyWeather(wr)
		case fn := <-p.inbox:
			fn()
		}
	}
}

// start registers the session timers and kicks off the first fetch.
func (p *Player) start(ctx context.Context) {
	p.sched.Every(KeyTick, p.cfg.TickInterval)
	p.sched.Every(KeyRefresh, p.cfg.RefreshInterval)
	p.sched.Every(KeyWatchdog, p.cfg.WatchdogInterval)
	if p.weather != nil {
		p.sched.Every(KeyWeather, p.cfg.WeatherInterval)
		p.fetchWeather(ctx)
	}
	p.rebuild()
	p.fetch(ctx)
}

func (p *Player) handle(ctx context.Context, key string) {
	switch key {
	case KeyTick:
		p.rebuild()
	case KeyRefresh:
		p.fetch(ctx)
	case KeyWatchdog:
		p.watchdogTick(ctx)
	case KeyWeather:
		p.fetchWeather(ctx)
	default:
		if p.rot.Handle(key) {
			p.publish()
		}
	}
}

func (p *Player) now() time.Time {
	return p.clock.Now().In(p.cfg.Location)
}

// rebuild is the one-second heartbeat. It re-resolves the schedule on a new
// day, refreshes the pools for the current instant and publishes a snapshot.
func (p *Player) rebuild() {
	now := p.now()
	if day := clock.DayKey(now, p.cfg.Location); day != p.dayKey {
		if p.dayKey != "" {
			log.Info().Str("from", p.dayKey).Str("to", day).Msg("day rollover")
		}
		p.dayKey = day
		p.resolve(now)
	}
	p.rot.Update(content.Build(p.bundle, now))
	p.publish()
}

func (p *Player) resolve(now time.Time) {
	p.resolution = schedule.Resolve(p.dayKey, now.Weekday(), p.bundle.Templates, p.bundle.Overrides)
	if err := schedule.Validate(p.resolution.Slots); err != nil && p.warnedDay != p.dayKey {
		p.warnedDay = p.dayKey
		log.Warn().Err(err).Str("day", p.dayKey).Str("note", p.resolution.Note).Msg("bell schedule has malformed slots")
	}
}

// fetch starts an asynchronous bundle load unless one is already in flight.
// The result is applied on the loop when it arrives.
func (p *Player) fetch(ctx context.Context) {
	if p.fetching || p.loader == nil {
		return
	}
	p.fetching = true
	gen := p.generation
	go func() {
		res := p.loader.Load(ctx)
		select {
		case p.results <- fetchResult{result: res, generation: gen}:
		case <-ctx.Done():
		}
	}()
}

func (p *Player) applyResult(fr fetchResult) {
	if fr.generation == p.generation {
		p.fetching = false
	}
	res := fr.result
	if res.Bundle == nil {
		res.Bundle = model.EmptyBundle()
	}
	p.result = res
	p.bundle = res.Bundle
	p.rot.ApplySettings(p.bundle.Rotation())
	p.resolve(p.now())
	p.rebuild()

	status := mqtt.Status{
		FromCache:           res.FromCache,
		IsStale:             res.IsStale,
		Overlay:             p.policy.Overlay(),
		ConsecutiveFailures: p.health().ConsecutiveFailures,
	}
	p.send(func(n Notifier) error { return n.Status(status) })
}

func (p *Player) fetchWeather(ctx context.Context) {
	if p.weather == nil {
		return
	}
	go func() {
		r, err := p.weather.Current(ctx)
		select {
		case p.weathRx <- weatherResult{reading: r, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (p *Player) applyWeather(wr weatherResult) {
	if wr.err != nil {
		p.metrics.RecordWeatherFetch("error")
		log.Warn().Err(wr.err).Msg("weather refresh failed, keeping last reading")
		return
	}
	p.metrics.RecordWeatherFetch("success")
	p.reading = wr.reading
	p.publish()
}

func (p *Player) health() bundle.Health {
	if p.loader == nil {
		return bundle.Health{LastSuccessAt: p.wall.Now()}
	}
	return p.loader.Health()
}

func (p *Player) watchdogTick(ctx context.Context) {
	d := p.policy.Tick(p.wall.Now(), p.health())
	switch d.Action {
	case watchdog.ActionReload:
		if err := p.guardedReload(ctx, d); err != nil {
			log.Warn().Err(err).Str("reason", string(d.Reason)).Msg("reload blocked")
		}
	case watchdog.ActionHideOverlay:
		log.Info().Msg("connectivity restored, hiding overlay")
		p.publish()
	}
}

// guardedReload asks the guard for a reload and, when granted, tells the
// screen to reload and restarts the session.
func (p *Player) guardedReload(ctx context.Context, d watchdog.Decision) error {
	if err := p.guard.Allow(ctx, p.wall.Now()); err != nil {
		outcome := "cooldown"
		if errors.Is(err, watchdog.ErrDailyLimit) {
			outcome = "daily_limit"
		}
		p.metrics.RecordReload(string(d.Reason), outcome)
		p.policy.Blocked(d)
		p.publish()
		return err
	}

	p.metrics.RecordReload(string(d.Reason), "reloaded")
	log.Warn().Str("reason", string(d.Reason)).Str("session", p.session).Msg("reloading display")
	reason := string(d.Reason)
	p.send(func(n Notifier) error { return n.Reload(reason) })
	p.reset(ctx)
	return nil
}

// reset starts a fresh session the way a page reload would: rotation from
// the initial mode, empty error log, fresh counters, immediate refetch.
func (p *Player) reset(ctx context.Context) {
	p.rot.Stop()
	p.policy.Reset()
	if p.loader != nil {
		p.loader.Reset()
	}
	p.session = uuid.NewString()
	p.generation++
	p.fetching = false
	p.dayKey = ""
	p.rebuild()
	p.fetch(ctx)
}

func (p *Player) modeSwitched(_, to rotation.Mode) {
	p.metrics.RecordModeSwitch(string(to))
	mode := string(to)
	p.send(func(n Notifier) error { return n.ModeChange(mode) })
}

// send queues a notification for the notify goroutine. The loop never waits
// on the broker; when the queue is full the message is dropped.
func (p *Player) send(fn func(Notifier) error) {
	if p.notifier == nil {
		return
	}
	select {
	case p.notify <- func() {
		if err := fn(p.notifier); err != nil {
			log.Warn().Err(err).Msg("failed to notify screen")
		}
	}:
	default:
		log.Warn().Msg("notify queue full, dropping message")
	}
}

func (p *Player) notifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-p.notify:
			fn()
		}
	}
}

// call runs fn on the loop goroutine and waits for it.
func (p *Player) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case p.inbox <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportScriptError records an uncaught error reported by the screen.
func (p *Player) ReportScriptError(message string) {
	p.metrics.RecordScriptError()
	p.policy.RecordScriptError(p.wall.Now())
	log.Warn().Str("message", message).Msg("display script error")
}

// Reload requests an operator reload. It goes through the same guard as
// watchdog reloads.
func (p *Player) Reload(ctx context.Context) error {
	var err error
	if cerr := p.call(ctx, func() {
		err = p.guardedReload(p.loopCtx, watchdog.Decision{Action: watchdog.ActionReload, Reason: watchdog.ReasonManual})
	}); cerr != nil {
		return cerr
	}
	return err
}

// Select shows item index of mode's pool.
func (p *Player) Select(ctx context.Context, mode rotation.Mode, index int) error {
	ok := false
	if err := p.call(ctx, func() {
		ok = p.rot.Select(mode, index)
		if ok {
			p.publish()
		}
	}); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no %s item at index %d", mode, index)
	}
	return nil
}

// Refresh re-evaluates the display right away, used after the preview
// clock changes.
func (p *Player) Refresh(ctx context.Context) error {
	return p.call(ctx, p.rebuild)
}

func (p *Player) Health() bundle.Health {
	return p.Snapshot().Health
}

func (p *Player) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Subscribe returns a channel that always holds the latest snapshot. Slow
// readers skip intermediate snapshots.
func (p *Player) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	if s := p.Snapshot(); s.SessionID != "" {
		ch <- s
	}

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	return ch, func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

func (p *Player) publish() {
	now := p.now()
	s := Snapshot{
		SessionID:      p.session,
		Now:            now,
		DayKey:         p.dayKey,
		Status:         schedule.ComputeStatus(now, p.resolution.Slots),
		Schedule:       p.resolution,
		SpecialDates:   todaysSpecialDates(p.bundle.SpecialDates, p.dayKey),
		Rotation:       p.rot.State(),
		Current:        p.rot.Current(),
		Ticker:         p.bundle.Ticker,
		SchoolInfo:     p.bundle.SchoolInfo,
		Weather:        p.reading,
		FromCache:      p.result.FromCache,
		CacheTimestamp: p.result.CacheTimestamp,
		IsStale:        p.result.IsStale,
		BundleAt:       p.bundle.GeneratedAt,
		Overlay:        p.policy.Overlay(),
		Health:         p.health(),
	}
	if pv, ok := p.clock.(interface{ Active() (clock.Override, bool) }); ok {
		if o, active := pv.Active(); active {
			s.Preview = &o
		}
	}

	p.mu.Lock()
	p.snap = s
	p.mu.Unlock()

	p.subMu.Lock()
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
	p.subMu.Unlock()
}

// Close releases the timers of a player that was never run.
func (p *Player) Close() {
	p.sched.Close()
}
