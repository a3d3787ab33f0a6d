package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

type State string

const (
	StateClosed State = "closed"
	StateLesson State = "lesson"
	StateBreak  State = "break"
	StateLunch  State = "lunch"
)

const (
	LabelSchoolStart = "School start"
	LabelBreak       = "break"
	LabelLesson      = "lesson"
	LabelNext        = "Next"
)

// NowStatus is either closed (NextInSec and NextLabel may be nil) or active,
// in which case NextInSec and CurrentEndsAt are always set.
type NowStatus struct {
	State         State      `json:"state"`
	NextInSec     *int       `json:"next_in_sec"`
	NextLabel     *string    `json:"next_label"`
	CurrentEndsAt *time.Time `json:"current_ends_at,omitempty"`
}

func (s NowStatus) Active() bool { return s.State != StateClosed }

// span is a BellSlot anchored to a concrete calendar day.
type span struct {
	slot  model.BellSlot
	start time.Time
	end   time.Time
}

// ComputeStatus evaluates now against slots, which are attached to now's
// calendar day in now's location. Slots whose times do not parse are ignored.
func ComputeStatus(now time.Time, slots []model.BellSlot) NowStatus {
	spans := anchor(now, slots)
	if len(spans) == 0 {
		return closed(nil, nil)
	}

	first, last := spans[0], spans[len(spans)-1]
	if now.Before(first.start) {
		return closed(secondsUntil(now, first.start), strPtr(LabelSchoolStart))
	}
	if !now.Before(last.end) {
		return closed(nil, nil)
	}

	for _, sp := range spans {
		if !now.Before(sp.start) && now.Before(sp.end) {
			end := sp.end
			return NowStatus{
				State:         stateOf(sp.slot.Kind),
				NextInSec:     secondsUntil(now, sp.end),
				NextLabel:     strPtr(followingLabel(sp.slot.Kind)),
				CurrentEndsAt: &end,
			}
		}
	}

	// In an unmodelled gap: point at the nearest slot still ahead.
	var next *span
	for i := range spans {
		sp := &spans[i]
		if sp.start.After(now) && (next == nil || sp.start.Before(next.start)) {
			next = sp
		}
	}
	if next == nil {
		return closed(nil, nil)
	}
	label := LabelNext
	if next.slot.Label != nil && *next.slot.Label != "" {
		label = *next.slot.Label
	}
	return closed(secondsUntil(now, next.start), &label)
}

func anchor(now time.Time, slots []model.BellSlot) []span {
	out := make([]span, 0, len(slots))
	for _, s := range slots {
		start, err := At(now, s.Start)
		if err != nil {
			continue
		}
		end, err := At(now, s.End)
		if err != nil {
			continue
		}
		out = append(out, span{slot: s, start: start, end: end})
	}
	return out
}

// At attaches a "HH:MM" wall-clock value to day's date in day's location.
func At(day time.Time, hhmm string) (time.Time, error) {
	h, m, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, h, m, 0, 0, day.Location()), nil
}

// ParseClock parses "HH:MM" (a trailing ":SS" is tolerated and ignored).
func ParseClock(hhmm string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("invalid clock value %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return h, m, nil
}

func stateOf(k model.SlotKind) State {
	switch k {
	case model.SlotBreak:
		return StateBreak
	case model.SlotLunch:
		return StateLunch
	default:
		return StateLesson
	}
}

// followingLabel names the category that follows, not the literal next slot.
func followingLabel(k model.SlotKind) string {
	if k == model.SlotBreak || k == model.SlotLunch {
		return LabelLesson
	}
	return LabelBreak
}

func secondsUntil(now, t time.Time) *int {
	s := int(t.Sub(now) / time.Second)
	return &s
}

func closed(next *int, label *string) NowStatus {
	return NowStatus{State: StateClosed, NextInSec: next, NextLabel: label}
}

func strPtr(s string) *string { return &s }
