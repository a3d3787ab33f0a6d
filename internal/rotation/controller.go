// Package rotation implements the single-active-mode state machine that
// cycles the display between the video, image and text pools.
package rotation

import (
	"slices"
	"time"

	"github.com/nsyasa/okul-bilgi-pano/internal/content"
	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

type Mode string

const (
	ModeVideo Mode = "video"
	ModeImage Mode = "image"
	ModeText  Mode = "text"
)

// order is both the auto-selection priority and the rotation sequence.
var order = [...]Mode{ModeVideo, ModeImage, ModeText}

const (
	KeyVideoEnded   = "rotation.video.ended"
	KeyImageAdvance = "rotation.image.advance"
	KeyImageDwell   = "rotation.image.dwell"
	KeyTextAdvance  = "rotation.text.advance"
	KeyTextDwell    = "rotation.text.dwell"
)

var keys = [...]string{KeyVideoEnded, KeyImageAdvance, KeyImageDwell, KeyTextAdvance, KeyTextDwell}

const (
	MinSlideSeconds     = 5
	DefaultVideoSeconds = 300
)

// Timers is the registry the controller schedules through. Registering a key
// that is already registered replaces it.
type Timers interface {
	After(key string, d time.Duration)
	Every(key string, d time.Duration)
	Cancel(key string)
}

type State struct {
	Mode       Mode           `json:"mode"`
	VideoIndex int            `json:"video_index"`
	ImageIndex int            `json:"image_index"`
	TextIndex  int            `json:"text_index"`
	Counts     content.Counts `json:"counts"`
	Enabled    bool           `json:"enabled"`
}

// Current is the item on screen. Exactly one field matches Mode; all are
// empty when the active pool is empty.
type Current struct {
	Mode  Mode                `json:"mode"`
	Video *model.YouTubeVideo `json:"video,omitempty"`
	Image string              `json:"image,omitempty"`
	Text  *model.Announcement `json:"text,omitempty"`
}

type Controller struct {
	timers   Timers
	settings model.RotationSettings
	pools    content.Pools
	started  bool

	mode       Mode
	videoIndex int
	imageIndex int
	textIndex  int

	onSwitch func(from, to Mode)
}

func New(timers Timers, settings model.RotationSettings) *Controller {
	return &Controller{timers: timers, settings: settings, mode: ModeText}
}

// OnSwitch registers a callback invoked whenever the active mode changes.
func (c *Controller) OnSwitch(fn func(from, to Mode)) { c.onSwitch = fn }

// Update feeds a freshly built set of pools. The first call selects the
// initial mode, and so does the first call with content after every pool
// was empty. A pool whose items changed has its index reset; if the active
// pool is now empty the mode is re-selected by priority in the same call.
func (c *Controller) Update(p content.Pools) {
	prev := c.pools
	c.pools = p

	if !c.started || (prev.Counts() == content.Counts{} && p.Counts() != content.Counts{}) {
		c.started = true
		c.enter(c.firstAvailable(), true)
		return
	}

	resized := false
	if !sameVideos(prev.Videos, p.Videos) {
		c.videoIndex = 0
		resized = resized || c.mode == ModeVideo
	}
	if !slices.Equal(prev.Images, p.Images) {
		c.imageIndex = 0
		resized = resized || c.mode == ModeImage
	}
	if !sameTexts(prev.Texts, p.Texts) {
		c.textIndex = 0
		resized = resized || c.mode == ModeText
	}

	if c.count(c.mode) == 0 {
		if next := c.firstAvailable(); next != c.mode || resized {
			c.enter(next, true)
		}
		return
	}
	if resized {
		c.enter(c.mode, false)
	}
}

func sameVideos(a, b []model.YouTubeVideo) bool {
	return slices.EqualFunc(a, b, func(x, y model.YouTubeVideo) bool {
		return x.ID == y.ID && x.URL == y.URL
	})
}

func sameTexts(a, b []model.Announcement) bool {
	return slices.EqualFunc(a, b, func(x, y model.Announcement) bool { return x.ID == y.ID })
}

// ApplySettings swaps the rotation settings and recreates the active mode's
// timers when anything changed.
func (c *Controller) ApplySettings(s model.RotationSettings) {
	if s == c.settings {
		return
	}
	c.settings = s
	if c.started {
		c.enter(c.mode, false)
	}
}

// Handle consumes a timer event. It reports whether key belongs to the
// controller; events for a mode that is no longer active are ignored.
func (c *Controller) Handle(key string) bool {
	switch key {
	case KeyVideoEnded:
		if c.mode == ModeVideo {
			c.videoEnded()
		}
	case KeyImageAdvance:
		if c.mode == ModeImage && len(c.pools.Images) > 0 {
			c.imageIndex = (c.imageIndex + 1) % len(c.pools.Images)
		}
	case KeyTextAdvance:
		if c.mode == ModeText && len(c.pools.Texts) > 0 {
			c.textIndex = (c.textIndex + 1) % len(c.pools.Texts)
		}
	case KeyImageDwell:
		if c.mode == ModeImage {
			c.enter(c.nextAfter(ModeImage), true)
		}
	case KeyTextDwell:
		if c.mode == ModeText {
			c.enter(c.nextAfter(ModeText), true)
		}
	default:
		return false
	}
	return true
}

// Select jumps to index i of mode's pool. It is the manual path used by
// operators and works whether or not rotation is enabled.
func (c *Controller) Select(mode Mode, i int) bool {
	n := c.count(mode)
	if i < 0 || i >= n {
		return false
	}
	switch mode {
	case ModeVideo:
		c.videoIndex = i
	case ModeImage:
		c.imageIndex = i
	case ModeText:
		c.textIndex = i
	default:
		return false
	}
	c.enter(mode, false)
	return true
}

// Stop cancels every rotation timer and forgets the session so the next
// Update starts from the initial selection again.
func (c *Controller) Stop() {
	for _, k := range keys {
		c.timers.Cancel(k)
	}
	c.started = false
	c.videoIndex, c.imageIndex, c.textIndex = 0, 0, 0
}

func (c *Controller) State() State {
	return State{
		Mode:       c.mode,
		VideoIndex: c.videoIndex,
		ImageIndex: c.imageIndex,
		TextIndex:  c.textIndex,
		Counts:     c.pools.Counts(),
		Enabled:    c.settings.Enabled,
	}
}

func (c *Controller) Current() Current {
	cur := Current{Mode: c.mode}
	switch c.mode {
	case ModeVideo:
		if c.videoIndex < len(c.pools.Videos) {
			v := c.pools.Videos[c.videoIndex]
			cur.Video = &v
		}
	case ModeImage:
		if c.imageIndex < len(c.pools.Images) {
			cur.Image = c.pools.Images[c.imageIndex]
		}
	case ModeText:
		if c.textIndex < len(c.pools.Texts) {
			a := c.pools.Texts[c.textIndex]
			cur.Text = &a
		}
	}
	return cur
}

func (c *Controller) videoEnded() {
	n := len(c.pools.Videos)
	if n == 0 {
		c.enter(c.firstAvailable(), true)
		return
	}
	c.videoIndex++
	if c.videoIndex >= n {
		c.videoIndex = 0
		if c.settings.Enabled {
			c.enter(c.nextAfter(ModeVideo), true)
			return
		}
	}
	c.enter(ModeVideo, false)
}

// enter makes mode active and recreates its timers. In video mode only the
// "video ended" timeout runs; slide advance timers exist for image and text.
func (c *Controller) enter(mode Mode, resetIndex bool) {
	prev := c.mode
	for _, k := range keys {
		c.timers.Cancel(k)
	}
	c.mode = mode

	switch mode {
	case ModeVideo:
		c.timers.After(KeyVideoEnded, c.videoTimeout())
	case ModeImage:
		if resetIndex {
			c.imageIndex = 0
		}
		slide := slideDuration(c.settings.ImageSeconds)
		c.timers.Every(KeyImageAdvance, slide)
		if c.settings.Enabled {
			c.timers.After(KeyImageDwell, time.Duration(max(1, len(c.pools.Images)))*slide)
		}
	case ModeText:
		if resetIndex {
			c.textIndex = 0
		}
		slide := slideDuration(c.settings.TextSeconds)
		c.timers.Every(KeyTextAdvance, slide)
		if c.settings.Enabled {
			c.timers.After(KeyTextDwell, time.Duration(max(1, len(c.pools.Texts)))*slide)
		}
	}

	if prev != mode && c.onSwitch != nil {
		c.onSwitch(prev, mode)
	}
}

// videoTimeout stands in for the "video ended" signal: the video's own
// duration (300s when unknown), never shorter than the configured seconds.
func (c *Controller) videoTimeout() time.Duration {
	secs := DefaultVideoSeconds
	if c.videoIndex < len(c.pools.Videos) {
		if d := c.pools.Videos[c.videoIndex].DurationSeconds; d != nil && *d > 0 {
			secs = *d
		}
	}
	secs = max(secs, c.settings.VideoSeconds)
	return time.Duration(secs) * time.Second
}

func slideDuration(seconds int) time.Duration {
	return time.Duration(max(MinSlideSeconds, seconds)) * time.Second
}

func (c *Controller) count(m Mode) int {
	switch m {
	case ModeVideo:
		return len(c.pools.Videos)
	case ModeImage:
		return len(c.pools.Images)
	case ModeText:
		return len(c.pools.Texts)
	}
	return 0
}

// firstAvailable is the highest-priority non-empty mode, text when all are empty.
func (c *Controller) firstAvailable() Mode {
	for _, m := range order {
		if c.count(m) > 0 {
			return m
		}
	}
	return ModeText
}

// nextAfter walks the rotation order after m, wrapping back to m itself,
// and returns the first non-empty mode (text when everything is empty).
func (c *Controller) nextAfter(m Mode) Mode {
	start := 0
	for i, o := range order {
		if o == m {
			start = i
		}
	}
	for step := 1; step <= len(order); step++ {
		cand := order[(start+step)%len(order)]
		if c.count(cand) > 0 {
			return cand
		}
	}
	return ModeText
}
