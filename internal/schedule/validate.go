package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

// Validate reports slots the evaluator would mishandle: unparseable times,
// unknown kinds, empty or inverted intervals, and out-of-order or overlapping
// slots. It never modifies the slots; callers decide whether to log or reject.
func Validate(slots []model.BellSlot) error {
	var errs []error
	ref := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	var prevEnd time.Time

	for i, s := range slots {
		start, err := At(ref, s.Start)
		if err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", i, err))
			continue
		}
		end, err := At(ref, s.End)
		if err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", i, err))
			continue
		}
		switch s.Kind {
		case model.SlotLesson, model.SlotBreak, model.SlotLunch:
		default:
			errs = append(errs, fmt.Errorf("slot %d: unknown kind %q", i, s.Kind))
		}
		if !end.After(start) {
			errs = append(errs, fmt.Errorf("slot %d: end %s is not after start %s", i, s.End, s.Start))
		}
		if !prevEnd.IsZero() && start.Before(prevEnd) {
			errs = append(errs, fmt.Errorf("slot %d: starts at %s before previous slot ends", i, s.Start))
		}
		prevEnd = end
	}
	return errors.Join(errs...)
}
