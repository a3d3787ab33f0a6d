package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	StatusPublished = "published"

	CategoryBig   = "big"
	CategorySmall = "small"

	DisplayText  = "text"
	DisplayImage = "image"
)

// StringList is stored as a jsonb array column.
type StringList []string

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("string list: unsupported scan type %T", src)
	}
	out := StringList{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	*l = out
	return nil
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

type Announcement struct {
	ID          int        `db:"id"           json:"id"`
	Title       string     `db:"title"        json:"title"`
	Body        string     `db:"body"         json:"body"`
	Status      string     `db:"status"       json:"status"`
	Category    string     `db:"category"     json:"category"`
	DisplayMode string     `db:"display_mode" json:"display_mode"`
	ImageURL    *string    `db:"image_url"    json:"image_url,omitempty"`
	ImageURLs   StringList `db:"image_urls"   json:"image_urls"`
	StartAt     *time.Time `db:"start_at"     json:"start_at,omitempty"`
	EndAt       *time.Time `db:"end_at"       json:"end_at,omitempty"`
	Priority    int        `db:"priority"     json:"priority"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
}

// HasImage reports whether the announcement carries a gallery or a single image.
func (a Announcement) HasImage() bool {
	return len(a.ImageURLs) > 0 || (a.ImageURL != nil && *a.ImageURL != "")
}

type YouTubeVideo struct {
	ID              int        `db:"id"               json:"id"`
	Title           string     `db:"title"            json:"title"`
	URL             string     `db:"url"              json:"url"`
	IsActive        bool       `db:"is_active"        json:"is_active"`
	DurationSeconds *int       `db:"duration_seconds" json:"duration_seconds,omitempty"`
	StartAt         *time.Time `db:"start_at"         json:"start_at,omitempty"`
	EndAt           *time.Time `db:"end_at"           json:"end_at,omitempty"`
	Priority        int        `db:"priority"         json:"priority"`
}

type TickerItem struct {
	ID       int    `db:"id"       json:"id"`
	Text     string `db:"text"     json:"text"`
	Priority int    `db:"priority" json:"priority"`
}

type SchoolInfo struct {
	ID        int    `db:"id"         json:"id"`
	Title     string `db:"title"      json:"title"`
	Body      string `db:"body"       json:"body"`
	SortOrder int    `db:"sort_order" json:"sort_order"`
}

type ContentKind int

const (
	KindVideo ContentKind = iota + 1
	KindAnnouncement
)

func (k ContentKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAnnouncement:
		return "announcement"
	}
	return "unknown"
}

// ContentItem is a tagged variant over the two content shapes. Exactly one of
// Video or Announcement is set, selected by Kind.
type ContentItem struct {
	Kind         ContentKind
	Video        *YouTubeVideo
	Announcement *Announcement
}

func VideoItem(v YouTubeVideo) ContentItem {
	return ContentItem{Kind: KindVideo, Video: &v}
}

func AnnouncementItem(a Announcement) ContentItem {
	return ContentItem{Kind: KindAnnouncement, Announcement: &a}
}
