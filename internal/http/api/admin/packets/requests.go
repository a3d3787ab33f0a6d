package packets

import "time"

// REQUESTS FOR /api/admin/*

// PreviewRequest overrides the display clock. Mode is "frozen" (default) or
// "running"; TTLSeconds defaults to one hour.
type PreviewRequest struct {
	At         time.Time `json:"at" binding:"required"`
	Mode       string    `json:"mode"`
	TTLSeconds int       `json:"ttl_seconds"`
}

type SelectRequest struct {
	Mode  string `json:"mode" binding:"required,oneof=video image text"`
	Index int    `json:"index" binding:"min=0"`
}
