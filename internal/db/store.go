// exposes the read-only content provider the player builds its bundle from
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/nsyasa/okul-bilgi-pano/internal/bundle"
	"github.com/nsyasa/okul-bilgi-pano/internal/clock"
	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

type Provider struct {
	db    *sqlx.DB
	clock clock.Clock
	loc   *time.Location
}

// compile-time check that Provider satisfies bundle.Provider
var _ bundle.Provider = (*Provider)(nil)

func NewProvider(db *sqlx.DB, clk clock.Clock, loc *time.Location) *Provider {
	if clk == nil {
		clk = clock.System{}
	}
	return &Provider{db: db, clock: clk, loc: loc}
}

// FetchBundle runs every collection query concurrently. The first failure
// cancels the rest and fails the whole bundle; partial data is never returned.
func (p *Provider) FetchBundle(ctx context.Context) (*model.PlayerBundle, error) {
	b := &model.PlayerBundle{}
	today := clock.DayKey(p.clock.Now(), p.loc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		b.Announcements, err = p.publishedAnnouncements(ctx)
		return wrap("announcements", err)
	})
	g.Go(func() (err error) {
		b.Ticker, err = p.activeTicker(ctx)
		return wrap("ticker", err)
	})
	g.Go(func() (err error) {
		b.Videos, err = p.activeVideos(ctx)
		return wrap("videos", err)
	})
	g.Go(func() (err error) {
		b.Templates, err = p.scheduleTemplates(ctx)
		return wrap("schedule templates", err)
	})
	g.Go(func() (err error) {
		b.Overrides, err = p.upcomingOverrides(ctx, today)
		return wrap("schedule overrides", err)
	})
	g.Go(func() (err error) {
		b.SchoolInfo, err = p.schoolInfo(ctx)
		return wrap("school info", err)
	})
	g.Go(func() (err error) {
		b.SpecialDates, err = p.activeSpecialDates(ctx)
		return wrap("special dates", err)
	})
	g.Go(func() (err error) {
		b.Settings, err = p.settings(ctx)
		return wrap("settings", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	b.Normalize()
	return b, nil
}

func wrap(collection string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %w", collection, err)
}
