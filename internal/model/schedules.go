package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type SlotKind string

const (
	SlotLesson SlotKind = "lesson"
	SlotBreak  SlotKind = "break"
	SlotLunch  SlotKind = "lunch"
)

type TemplateKey string

const (
	TemplateMonThu TemplateKey = "mon_thu"
	TemplateFri    TemplateKey = "fri"
)

// BellSlot is one interval of a school day. Start and End are wall-clock "HH:MM".
type BellSlot struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Kind  SlotKind `json:"kind"`
	Label *string  `json:"label,omitempty"`
}

// Slots is stored as a jsonb column.
type Slots []BellSlot

func (s *Slots) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = Slots{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("slots: unsupported scan type %T", src)
	}
	out := Slots{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("slots: %w", err)
	}
	*s = out
	return nil
}

func (s Slots) Value() (driver.Value, error) {
	if s == nil {
		s = Slots{}
	}
	return json.Marshal(s)
}

type ScheduleTemplate struct {
	Key   TemplateKey `db:"key"   json:"key"`
	Slots Slots       `db:"slots" json:"slots"`
}

// ScheduleOverride replaces the template entirely for one date (YYYY-MM-DD).
type ScheduleOverride struct {
	Date  string `db:"date"  json:"date"`
	Slots Slots  `db:"slots" json:"slots"`
}

type SpecialDate struct {
	ID       int    `db:"id"        json:"id"`
	Date     string `db:"date"      json:"date"`
	Title    string `db:"title"     json:"title"`
	IsActive bool   `db:"is_active" json:"is_active"`
}
