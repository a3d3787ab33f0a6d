// Package schedule resolves the bell schedule for a day and evaluates the
// school's "now" status against it.
package schedule

import (
	"time"

	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

const (
	NoteSpecialProgram = "special program"
	NoteRegular        = "regular program"
)

type Resolution struct {
	Slots []model.BellSlot `json:"slots"`
	Note  string           `json:"note"`
}

// Resolve picks the slots for dateKey. A matching override wins verbatim;
// otherwise Friday uses the fri template and every other weekday, weekends
// included, uses mon_thu. A missing template yields no slots.
func Resolve(dateKey string, weekday time.Weekday, templates []model.ScheduleTemplate, overrides []model.ScheduleOverride) Resolution {
	for _, o := range overrides {
		if o.Date == dateKey {
			return Resolution{Slots: copySlots(o.Slots), Note: NoteSpecialProgram}
		}
	}

	key := model.TemplateMonThu
	if weekday == time.Friday {
		key = model.TemplateFri
	}
	for _, t := range templates {
		if t.Key == key {
			return Resolution{Slots: copySlots(t.Slots), Note: NoteRegular}
		}
	}
	return Resolution{Slots: []model.BellSlot{}, Note: NoteRegular}
}

func copySlots(in []model.BellSlot) []model.BellSlot {
	out := make([]model.BellSlot, len(in))
	copy(out, in)
	return out
}
