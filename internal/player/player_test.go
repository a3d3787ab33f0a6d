package player

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsyasa/okul-bilgi-pano/internal/bundle"
	"github.com/nsyasa/okul-bilgi-pano/internal/clock"
	"github.com/nsyasa/okul-bilgi-pano/internal/model"
	"github.com/nsyasa/okul-bilgi-pano/internal/mqtt"
	"github.com/nsyasa/okul-bilgi-pano/internal/rotation"
	"github.com/nsyasa/okul-bilgi-pano/internal/schedule"
	"github.com/nsyasa/okul-bilgi-pano/internal/watchdog"
	"github.com/nsyasa/okul-bilgi-pano/internal/weather"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakeLoader struct {
	mu     sync.Mutex
	result bundle.Result
	health bundle.Health
	loads  int
	resets int
}

func (l *fakeLoader) Load(context.Context) bundle.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	return l.result
}

func (l *fakeLoader) Health() bundle.Health {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.health
}

func (l *fakeLoader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets++
	l.health = bundle.Health{LastSuccessAt: l.health.LastSuccessAt}
}

func (l *fakeLoader) setHealth(h bundle.Health) {
	l.mu.Lock()
	l.health = h
	l.mu.Unlock()
}

type fakeNotifier struct {
	mu       sync.Mutex
	modes    []string
	reloads  []string
	statuses []mqtt.Status
}

func (n *fakeNotifier) ModeChange(mode string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.modes = append(n.modes, mode)
	return nil
}

func (n *fakeNotifier) Reload(reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reloads = append(n.reloads, reason)
	return nil
}

func (n *fakeNotifier) Status(s mqtt.Status) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, s)
	return nil
}

var istanbul = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		panic(err)
	}
	return loc
}()

// Monday
var monday0845 = time.Date(2026, 3, 2, 8, 45, 0, 0, istanbul)

func label(s string) *string { return &s }

func schoolBundle() *model.PlayerBundle {
	b := model.EmptyBundle()
	b.Templates = []model.ScheduleTemplate{{
		Key: model.TemplateMonThu,
		Slots: model.Slots{
			{Start: "08:30", End: "09:10", Kind: model.SlotLesson},
			{Start: "09:10", End: "09:20", Kind: model.SlotBreak},
		},
	}}
	b.Overrides = []model.ScheduleOverride{{
		Date:  "2026-03-03",
		Slots: model.Slots{{Start: "10:00", End: "10:40", Kind: model.SlotLesson, Label: label("Tören")}},
	}}
	b.Videos = []model.YouTubeVideo{{ID: 1, IsActive: true, URL: "https://youtu.be/a"}}
	b.Announcements = []model.Announcement{
		{ID: 5, Status: model.StatusPublished, DisplayMode: model.DisplayImage, ImageURL: label("https://cdn/a.jpg")},
		{ID: 6, Status: model.StatusPublished, Category: model.CategorySmall, Title: "Kermes"},
	}
	b.Ticker = []model.TickerItem{{ID: 1, Text: "Hos geldiniz"}}
	b.SpecialDates = []model.SpecialDate{
		{ID: 1, Date: "2026-03-02", Title: "Bilim haftasi", IsActive: true},
		{ID: 2, Date: "2026-03-02", Title: "Pasif", IsActive: false},
		{ID: 3, Date: "2026-03-18", Title: "Canakkale", IsActive: true},
	}
	return b
}

type harness struct {
	p        *Player
	clk      *testClock
	wall     *testClock
	loader   *fakeLoader
	notifier *fakeNotifier
	policy   *watchdog.Policy
}

func newHarness(t *testing.T, guard *watchdog.Guard) *harness {
	t.Helper()
	h := &harness{
		clk:      &testClock{t: monday0845},
		wall:     &testClock{t: monday0845},
		loader:   &fakeLoader{result: bundle.Result{Bundle: schoolBundle()}},
		notifier: &fakeNotifier{},
		policy:   watchdog.NewPolicy(),
	}
	h.loader.health = bundle.Health{LastSuccessAt: monday0845}
	if guard == nil {
		guard = watchdog.NewGuard(nil, "reloads", 10, istanbul)
	}
	h.p = New(Config{Location: istanbul}, Deps{
		Loader:   h.loader,
		Policy:   h.policy,
		Guard:    guard,
		Clock:    h.clk,
		Wall:     h.wall,
		Notifier: h.notifier,
	})
	t.Cleanup(h.p.Close)
	return h
}

// flush runs every queued notification on the test goroutine.
func (h *harness) flush() {
	for {
		select {
		case fn := <-h.p.notify:
			fn()
		default:
			return
		}
	}
}

func (h *harness) apply(res bundle.Result) {
	h.p.applyResult(fetchResult{result: res, generation: h.p.generation})
}

func TestApplyResultPublishesSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	cached := monday0845.Add(-3 * time.Hour)
	h.apply(bundle.Result{Bundle: schoolBundle(), FromCache: true, CacheTimestamp: &cached, IsStale: false})

	s := h.p.Snapshot()
	assert.Equal(t, "2026-03-02", s.DayKey)
	assert.Equal(t, schedule.NoteRegular, s.Schedule.Note)
	assert.Equal(t, schedule.StateLesson, s.Status.State)
	require.NotNil(t, s.Status.NextInSec)
	assert.Equal(t, 1500, *s.Status.NextInSec)
	assert.Equal(t, "break", *s.Status.NextLabel)

	assert.Equal(t, rotation.ModeVideo, s.Rotation.Mode)
	require.NotNil(t, s.Current.Video)
	assert.Equal(t, 1, s.Current.Video.ID)
	assert.Equal(t, 1, s.Rotation.Counts.Image)
	assert.Equal(t, 1, s.Rotation.Counts.Text)

	require.Len(t, s.SpecialDates, 1)
	assert.Equal(t, "Bilim haftasi", s.SpecialDates[0].Title)
	assert.Len(t, s.Ticker, 1)
	assert.True(t, s.FromCache)
	assert.Equal(t, &cached, s.CacheTimestamp)
	assert.NotEmpty(t, s.SessionID)

	h.flush()
	assert.Equal(t, []string{"video"}, h.notifier.modes)
	require.Len(t, h.notifier.statuses, 1)
	assert.True(t, h.notifier.statuses[0].FromCache)
}

func TestFirstBundleAfterPlaceholderStartsOnVideo(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		h := newHarness(t, nil)
		h.p.rebuild()
		require.Equal(t, rotation.ModeText, h.p.Snapshot().Rotation.Mode)

		b := schoolBundle()
		b.Settings[model.SettingsRotationKey] = []byte(fmt.Sprintf(`{"enabled":%v,"videoSeconds":30,"imageSeconds":10,"textSeconds":10}`, enabled))
		h.apply(bundle.Result{Bundle: b})

		s := h.p.Snapshot()
		assert.Equal(t, rotation.ModeVideo, s.Rotation.Mode, "enabled=%v", enabled)
		assert.Contains(t, h.p.sched.Active(), rotation.KeyVideoEnded)
		assert.NotContains(t, h.p.sched.Active(), rotation.KeyTextAdvance)
	}
}

func TestLateResultFromOldSessionStillUpdatesState(t *testing.T) {
	h := newHarness(t, nil)
	h.p.generation = 2
	h.p.fetching = true

	h.p.applyResult(fetchResult{result: bundle.Result{Bundle: schoolBundle(), FromCache: true}, generation: 1})

	assert.True(t, h.p.fetching, "the current session's fetch is still in flight")
	s := h.p.Snapshot()
	assert.True(t, s.FromCache)
	assert.Len(t, s.Ticker, 1)
	assert.Equal(t, rotation.ModeVideo, s.Rotation.Mode)

	h.p.applyResult(fetchResult{result: bundle.Result{Bundle: schoolBundle()}, generation: 2})
	assert.False(t, h.p.fetching)
	assert.False(t, h.p.Snapshot().FromCache)
}

func TestEmptyBundleShowsClosedTextPlaceholder(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(bundle.Result{})

	s := h.p.Snapshot()
	assert.Equal(t, schedule.StateClosed, s.Status.State)
	assert.Nil(t, s.Status.NextInSec)
	assert.Equal(t, rotation.ModeText, s.Rotation.Mode)
	assert.Equal(t, rotation.Current{Mode: rotation.ModeText}, s.Current)
	assert.NotNil(t, s.Ticker)
}

func TestDailyRolloverResolvesOverride(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(bundle.Result{Bundle: schoolBundle()})

	h.clk.Set(time.Date(2026, 3, 3, 9, 59, 0, 0, istanbul))
	h.p.rebuild()

	s := h.p.Snapshot()
	assert.Equal(t, "2026-03-03", s.DayKey)
	assert.Equal(t, schedule.NoteSpecialProgram, s.Schedule.Note)
	assert.Equal(t, schedule.StateClosed, s.Status.State)
	assert.Equal(t, 60, *s.Status.NextInSec)
	assert.Equal(t, schedule.LabelSchoolStart, *s.Status.NextLabel)
	assert.Empty(t, s.SpecialDates)
}

func TestTickUpdatesStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(bundle.Result{Bundle: schoolBundle()})

	h.clk.Set(monday0845.Add(30 * time.Minute))
	h.p.handle(context.Background(), KeyTick)

	s := h.p.Snapshot()
	assert.Equal(t, schedule.StateBreak, s.Status.State)
	assert.Equal(t, 300, *s.Status.NextInSec)
}

func TestRotationEventsDriveMode(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(bundle.Result{Bundle: schoolBundle()})

	h.p.handle(context.Background(), rotation.KeyVideoEnded)
	assert.Equal(t, rotation.ModeImage, h.p.Snapshot().Rotation.Mode)
	assert.Equal(t, "https://cdn/a.jpg", h.p.Snapshot().Current.Image)

	h.p.handle(context.Background(), rotation.KeyImageDwell)
	assert.Equal(t, rotation.ModeText, h.p.Snapshot().Rotation.Mode)

	h.flush()
	assert.Equal(t, []string{"video", "image", "text"}, h.notifier.modes)
}

func TestSettingsFromBundle(t *testing.T) {
	h := newHarness(t, nil)
	b := schoolBundle()
	b.Settings[model.SettingsRotationKey] = []byte(`{"enabled":false,"videoSeconds":30,"imageSeconds":10,"textSeconds":10}`)
	h.apply(bundle.Result{Bundle: b})

	h.p.handle(context.Background(), rotation.KeyVideoEnded)
	s := h.p.Snapshot()
	assert.False(t, s.Rotation.Enabled)
	assert.Equal(t, rotation.ModeVideo, s.Rotation.Mode)
}

func TestWatchdogReloadRestartsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(bundle.Result{Bundle: schoolBundle()})
	h.p.handle(context.Background(), rotation.KeyVideoEnded)
	before := h.p.Snapshot().SessionID

	h.loader.setHealth(bundle.Health{ConsecutiveFailures: 5, LastSuccessAt: monday0845.Add(-6 * time.Minute)})
	h.p.watchdogTick(context.Background())

	s := h.p.Snapshot()
	assert.NotEqual(t, before, s.SessionID)
	assert.Equal(t, rotation.ModeVideo, s.Rotation.Mode, "rotation restarts from the initial selection")
	assert.False(t, s.Overlay)
	assert.Equal(t, 1, h.loader.resets)

	h.flush()
	assert.Equal(t, []string{"stale"}, h.notifier.reloads)
}

func TestBlockedReloadShowsOverlay(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(bundle.Result{Bundle: schoolBundle()})

	failing := bundle.Health{ConsecutiveFailures: 5, LastSuccessAt: monday0845}
	h.loader.setHealth(failing)
	h.p.watchdogTick(context.Background())
	require.Equal(t, 1, h.loader.resets)

	// still failing a minute later: cooldown blocks the second reload
	h.wall.Set(monday0845.Add(time.Minute))
	h.loader.setHealth(failing)
	h.p.watchdogTick(context.Background())
	assert.Equal(t, 1, h.loader.resets)
	assert.True(t, h.p.Snapshot().Overlay)

	h.loader.setHealth(bundle.Health{LastSuccessAt: monday0845.Add(time.Minute)})
	h.p.watchdogTick(context.Background())
	assert.False(t, h.p.Snapshot().Overlay)

	h.flush()
	assert.Len(t, h.notifier.reloads, 1)
}

func TestScriptErrorReloadBlockedSilently(t *testing.T) {
	guard := watchdog.NewGuard(nil, "reloads", 1, istanbul)
	require.NoError(t, guard.Allow(context.Background(), monday0845.Add(-time.Hour)))

	h := newHarness(t, guard)
	h.apply(bundle.Result{Bundle: schoolBundle()})
	for i := 0; i < 3; i++ {
		h.p.ReportScriptError("TypeError: undefined is not a function")
	}

	h.p.watchdogTick(context.Background())
	assert.Equal(t, 0, h.loader.resets)
	assert.False(t, h.p.Snapshot().Overlay)
}

func TestWeatherKeepsLastReading(t *testing.T) {
	h := newHarness(t, nil)
	h.p.applyWeather(weatherResult{reading: &weather.Reading{TemperatureC: 9.5, Description: "rain"}})
	h.p.applyWeather(weatherResult{err: assert.AnError})

	require.NotNil(t, h.p.Snapshot().Weather)
	assert.Equal(t, 9.5, h.p.Snapshot().Weather.TemperatureC)
}

func TestPreviewClockAppearsInSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	preview := clock.NewPreview(h.wall)
	h.p.clock = preview
	h.apply(bundle.Result{Bundle: schoolBundle()})

	_, err := preview.Set(time.Date(2026, 3, 2, 9, 15, 0, 0, istanbul), clock.PreviewFrozen, time.Hour)
	require.NoError(t, err)
	h.p.rebuild()

	s := h.p.Snapshot()
	require.NotNil(t, s.Preview)
	assert.Equal(t, clock.PreviewFrozen, s.Preview.Mode)
	assert.Equal(t, schedule.StateBreak, s.Status.State)
}

func TestSubscribeGetsLatest(t *testing.T) {
	h := newHarness(t, nil)
	h.apply(bundle.Result{Bundle: schoolBundle()})

	ch, cancel := h.p.Subscribe()
	defer cancel()
	first := <-ch
	assert.Equal(t, "2026-03-02", first.DayKey)

	h.clk.Set(monday0845.Add(time.Second))
	h.p.rebuild()
	h.clk.Set(monday0845.Add(2 * time.Second))
	h.p.rebuild()

	latest := <-ch
	assert.True(t, monday0845.Add(2*time.Second).Equal(latest.Now))
	select {
	case <-ch:
		t.Fatal("expected a single buffered snapshot")
	default:
	}
}

func TestRunServesCommands(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.p.Snapshot().Rotation.Counts.Video == 1
	}, 2*time.Second, 10*time.Millisecond)

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()

	require.NoError(t, h.p.Select(callCtx, rotation.ModeText, 0))
	assert.Equal(t, rotation.ModeText, h.p.Snapshot().Rotation.Mode)
	assert.Error(t, h.p.Select(callCtx, rotation.ModeImage, 4))

	require.NoError(t, h.p.Reload(callCtx))
	assert.ErrorIs(t, h.p.Reload(callCtx), watchdog.ErrCooldown)
	require.NoError(t, h.p.Refresh(callCtx))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("player did not stop")
	}
}
