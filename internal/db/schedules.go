package db

import (
	"context"
	"encoding/json"

	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

func (p *Provider) scheduleTemplates(ctx context.Context) ([]model.ScheduleTemplate, error) {
	out := []model.ScheduleTemplate{}
	const q = `
	SELECT key, slots
	  FROM schedule_templates
	 WHERE key IN ('mon_thu', 'fri')
	 ORDER BY key;`
	if err := p.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

// upcomingOverrides returns overrides dated today (display timezone) or later.
func (p *Provider) upcomingOverrides(ctx context.Context, today string) ([]model.ScheduleOverride, error) {
	out := []model.ScheduleOverride{}
	const q = `
	SELECT to_char(date, 'YYYY-MM-DD') AS date, slots
	  FROM schedule_overrides
	 WHERE date >= $1::date
	 ORDER BY date;`
	if err := p.db.SelectContext(ctx, &out, q, today); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) activeSpecialDates(ctx context.Context) ([]model.SpecialDate, error) {
	out := []model.SpecialDate{}
	const q = `
	SELECT id, to_char(date, 'YYYY-MM-DD') AS date, title, is_active
	  FROM special_dates
	 WHERE is_active
	 ORDER BY date, id;`
	if err := p.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

func (p *Provider) settings(ctx context.Context) (map[string]json.RawMessage, error) {
	var rows []settingRow
	const q = `SELECT key, value::text AS value FROM settings;`
	if err := p.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, r := range rows {
		out[r.Key] = json.RawMessage(r.Value)
	}
	return out, nil
}
