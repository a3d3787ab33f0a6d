package packets

import "time"

// RESPONSES FOR /api/admin/*

type PreviewResponse struct {
	Active    bool       `json:"active"`
	At        *time.Time `json:"at,omitempty"`
	Mode      string     `json:"mode,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	// DisplayNow is the instant the display clock currently reads.
	DisplayNow time.Time `json:"display_now"`
}

type ReloadResponse struct {
	Reloaded bool `json:"reloaded"`
}

type SelectResponse struct {
	Mode  string `json:"mode"`
	Index int    `json:"index"`
}
