package model

import (
	"encoding/json"
	"time"
)

const SettingsRotationKey = "rotation"

type RotationSettings struct {
	Enabled      bool `json:"enabled"`
	VideoSeconds int  `json:"videoSeconds"`
	ImageSeconds int  `json:"imageSeconds"`
	TextSeconds  int  `json:"textSeconds"`
}

func DefaultRotationSettings() RotationSettings {
	return RotationSettings{Enabled: true, VideoSeconds: 30, ImageSeconds: 10, TextSeconds: 10}
}

// PlayerBundle is one immutable snapshot of everything the player consumes.
type PlayerBundle struct {
	Announcements []Announcement             `json:"announcements"`
	Ticker        []TickerItem               `json:"ticker"`
	Videos        []YouTubeVideo             `json:"videos"`
	Templates     []ScheduleTemplate         `json:"templates"`
	Overrides     []ScheduleOverride         `json:"overrides"`
	SchoolInfo    []SchoolInfo               `json:"school_info"`
	SpecialDates  []SpecialDate              `json:"special_dates"`
	Settings      map[string]json.RawMessage `json:"settings"`
	GeneratedAt   time.Time                  `json:"generated_at"`
}

// EmptyBundle returns a bundle whose collections are all empty but non-nil.
func EmptyBundle() *PlayerBundle {
	b := &PlayerBundle{}
	b.Normalize()
	return b
}

// Normalize replaces nil collections with empty ones so consumers never nil-check.
func (b *PlayerBundle) Normalize() {
	if b.Announcements == nil {
		b.Announcements = []Announcement{}
	}
	if b.Ticker == nil {
		b.Ticker = []TickerItem{}
	}
	if b.Videos == nil {
		b.Videos = []YouTubeVideo{}
	}
	if b.Templates == nil {
		b.Templates = []ScheduleTemplate{}
	}
	if b.Overrides == nil {
		b.Overrides = []ScheduleOverride{}
	}
	if b.SchoolInfo == nil {
		b.SchoolInfo = []SchoolInfo{}
	}
	if b.SpecialDates == nil {
		b.SpecialDates = []SpecialDate{}
	}
	if b.Settings == nil {
		b.Settings = map[string]json.RawMessage{}
	}
}

// Rotation decodes the "rotation" setting over the defaults. Missing or
// malformed settings yield the defaults.
func (b *PlayerBundle) Rotation() RotationSettings {
	s := DefaultRotationSettings()
	raw, ok := b.Settings[SettingsRotationKey]
	if !ok || len(raw) == 0 {
		return s
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return DefaultRotationSettings()
	}
	return s
}
