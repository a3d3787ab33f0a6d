package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

var (
	monThuSlots = model.Slots{
		{Start: "08:30", End: "09:10", Kind: model.SlotLesson},
		{Start: "09:10", End: "09:20", Kind: model.SlotBreak},
	}
	friSlots = model.Slots{
		{Start: "08:30", End: "09:05", Kind: model.SlotLesson},
	}
	templates = []model.ScheduleTemplate{
		{Key: model.TemplateMonThu, Slots: monThuSlots},
		{Key: model.TemplateFri, Slots: friSlots},
	}
)

func TestResolveOverrideWins(t *testing.T) {
	special := model.Slots{
		{Start: "10:00", End: "10:30", Kind: model.SlotLesson, Label: label("Tören")},
	}
	overrides := []model.ScheduleOverride{
		{Date: "2026-03-05", Slots: model.Slots{{Start: "08:00", End: "09:00", Kind: model.SlotLesson}}},
		{Date: "2026-03-06", Slots: special},
	}

	for _, wd := range []time.Weekday{time.Monday, time.Friday, time.Sunday} {
		res := Resolve("2026-03-06", wd, templates, overrides)
		assert.Equal(t, []model.BellSlot(special), res.Slots)
		assert.Equal(t, NoteSpecialProgram, res.Note)
	}
}

func TestResolveFridayTemplate(t *testing.T) {
	res := Resolve("2026-03-06", time.Friday, templates, nil)
	assert.Equal(t, []model.BellSlot(friSlots), res.Slots)
	assert.Equal(t, NoteRegular, res.Note)
}

func TestResolveOtherDaysUseMonThu(t *testing.T) {
	for _, wd := range []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Saturday} {
		res := Resolve("2026-03-02", wd, templates, nil)
		assert.Equal(t, []model.BellSlot(monThuSlots), res.Slots, wd.String())
	}
}

func TestResolveMissingTemplateIsEmpty(t *testing.T) {
	res := Resolve("2026-03-06", time.Friday, []model.ScheduleTemplate{{Key: model.TemplateMonThu, Slots: monThuSlots}}, nil)
	assert.NotNil(t, res.Slots)
	assert.Empty(t, res.Slots)

	st := ComputeStatus(time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC), res.Slots)
	assert.Equal(t, StateClosed, st.State)
}

func TestResolveReturnsCopy(t *testing.T) {
	res := Resolve("2026-03-02", time.Monday, templates, nil)
	res.Slots[0].Start = "07:00"
	assert.Equal(t, "08:30", monThuSlots[0].Start)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(monThuSlots))
	assert.NoError(t, Validate(nil))

	assert.Error(t, Validate([]model.BellSlot{{Start: "x", End: "09:00", Kind: model.SlotLesson}}))
	assert.Error(t, Validate([]model.BellSlot{{Start: "09:00", End: "09:00", Kind: model.SlotLesson}}))
	assert.Error(t, Validate([]model.BellSlot{{Start: "09:00", End: "09:40", Kind: "assembly"}}))
	assert.Error(t, Validate([]model.BellSlot{
		{Start: "09:00", End: "09:40", Kind: model.SlotLesson},
		{Start: "09:30", End: "09:50", Kind: model.SlotBreak},
	}))
}
