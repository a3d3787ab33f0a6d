package db

import (
	"context"

	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

func (p *Provider) publishedAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	out := []model.Announcement{}
	const q = `
	SELECT id, title, body, status, category, display_mode, image_url, image_urls,
	       start_at, end_at, priority, created_at
	  FROM announcements
	 WHERE status = 'published'
	 ORDER BY priority DESC, created_at DESC;`
	if err := p.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) activeTicker(ctx context.Context) ([]model.TickerItem, error) {
	out := []model.TickerItem{}
	const q = `
	SELECT id, text, priority
	  FROM ticker_items
	 WHERE is_active
	 ORDER BY priority DESC, id;`
	if err := p.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) activeVideos(ctx context.Context) ([]model.YouTubeVideo, error) {
	out := []model.YouTubeVideo{}
	const q = `
	SELECT id, title, url, is_active, duration_seconds, start_at, end_at, priority
	  FROM youtube_videos
	 WHERE is_active
	 ORDER BY priority DESC, id;`
	if err := p.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Provider) schoolInfo(ctx context.Context) ([]model.SchoolInfo, error) {
	out := []model.SchoolInfo{}
	const q = `
	SELECT id, title, body, sort_order
	  FROM school_info
	 WHERE is_active
	 ORDER BY sort_order, id;`
	if err := p.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}
