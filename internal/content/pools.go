// Package content decides which items are eligible right now and builds the
// video, image and text pools the rotation controller cycles through.
package content

import (
	"time"

	"github.com/nsyasa/okul-bilgi-pano/internal/model"
)

const MaxImages = 10

type Pools struct {
	Videos []model.YouTubeVideo `json:"videos"`
	Images []string             `json:"images"`
	Texts  []model.Announcement `json:"texts"`
}

type Counts struct {
	Video int `json:"video"`
	Image int `json:"image"`
	Text  int `json:"text"`
}

func (p Pools) Counts() Counts {
	return Counts{Video: len(p.Videos), Image: len(p.Images), Text: len(p.Texts)}
}

// Eligible reports whether item may be shown at now: its active/published
// flag is set and now lies inside its optional [start_at, end_at] window.
func Eligible(item model.ContentItem, now time.Time) bool {
	switch item.Kind {
	case model.KindVideo:
		v := item.Video
		return v != nil && v.IsActive && inWindow(now, v.StartAt, v.EndAt)
	case model.KindAnnouncement:
		a := item.Announcement
		return a != nil && a.Status == model.StatusPublished && inWindow(now, a.StartAt, a.EndAt)
	default:
		return false
	}
}

func inWindow(now time.Time, start, end *time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}

// Build derives all three pools from one bundle against a single instant so
// a tick sees a consistent view. Upstream ordering (priority desc) is kept.
func Build(b *model.PlayerBundle, now time.Time) Pools {
	if b == nil {
		b = model.EmptyBundle()
	}
	return Pools{
		Videos: videoPool(b.Videos, now),
		Images: imagePool(b.Announcements, now),
		Texts:  textPool(b.Announcements, now),
	}
}

// videoPool falls back to every active video when the time windows exclude
// all of them, so the pool never empties just because windows have not opened.
func videoPool(videos []model.YouTubeVideo, now time.Time) []model.YouTubeVideo {
	out := []model.YouTubeVideo{}
	for _, v := range videos {
		if Eligible(model.VideoItem(v), now) {
			out = append(out, v)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, v := range videos {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out
}

func imagePool(announcements []model.Announcement, now time.Time) []string {
	out := []string{}
	for _, a := range announcements {
		if a.DisplayMode != model.DisplayImage || !Eligible(model.AnnouncementItem(a), now) {
			continue
		}
		urls := []string(a.ImageURLs)
		if len(urls) == 0 && a.ImageURL != nil && *a.ImageURL != "" {
			urls = []string{*a.ImageURL}
		}
		for _, u := range urls {
			if u == "" {
				continue
			}
			if len(out) == MaxImages {
				return out
			}
			out = append(out, u)
		}
	}
	return out
}

// textPool returns the first eligible big announcement alone, or else every
// eligible small announcement without images.
func textPool(announcements []model.Announcement, now time.Time) []model.Announcement {
	for _, a := range announcements {
		if a.Category == model.CategoryBig && Eligible(model.AnnouncementItem(a), now) {
			return []model.Announcement{a}
		}
	}
	out := []model.Announcement{}
	for _, a := range announcements {
		if a.Category == model.CategorySmall && !a.HasImage() && Eligible(model.AnnouncementItem(a), now) {
			out = append(out, a)
		}
	}
	return out
}
