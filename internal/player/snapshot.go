package player

import (
	"time"

	"github.com/nsyasa/okul-bilgi-pano/internal/bundle"
	"github.com/nsyasa/okul-bilgi-pano/internal/clock"
	"github.com/nsyasa/okul-bilgi-pano/internal/model"
	"github.com/nsyasa/okul-bilgi-pano/internal/rotation"
	"github.com/nsyasa/okul-bilgi-pano/internal/schedule"
	"github.com/nsyasa/okul-bilgi-pano/internal/weather"
)

// Snapshot is everything the screen renders at one instant.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Now       time.Time `json:"now"`
	DayKey    string    `json:"day_key"`

	Status       schedule.NowStatus  `json:"status"`
	Schedule     schedule.Resolution `json:"schedule"`
	SpecialDates []model.SpecialDate `json:"special_dates"`

	Rotation rotation.State   `json:"rotation"`
	Current  rotation.Current `json:"current"`

	Ticker     []model.TickerItem `json:"ticker"`
	SchoolInfo []model.SchoolInfo `json:"school_info"`
	Weather    *weather.Reading   `json:"weather,omitempty"`

	FromCache      bool       `json:"from_cache"`
	CacheTimestamp *time.Time `json:"cache_timestamp,omitempty"`
	IsStale        bool       `json:"is_stale"`
	BundleAt       time.Time  `json:"bundle_generated_at"`

	Overlay bool            `json:"overlay"`
	Health  bundle.Health   `json:"health"`
	Preview *clock.Override `json:"preview,omitempty"`
}

func todaysSpecialDates(all []model.SpecialDate, dayKey string) []model.SpecialDate {
	out := []model.SpecialDate{}
	for _, d := range all {
		if d.IsActive && d.Date == dayKey {
			out = append(out, d)
		}
	}
	return out
}
