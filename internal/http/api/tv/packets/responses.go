package packets

import (
	"time"

	"github.com/nsyasa/okul-bilgi-pano/internal/schedule"
	"github.com/nsyasa/okul-bilgi-pano/internal/watchdog"
)

// RESPONSES FOR /api/tv/*

type StatusResponse struct {
	Now     time.Time          `json:"now"`
	DayKey  string             `json:"day_key"`
	Status  schedule.NowStatus `json:"status"`
	Note    string             `json:"note"`
	Preview bool               `json:"preview"`
}

type HealthResponse struct {
	SessionID           string                `json:"session_id"`
	ConsecutiveFailures int                   `json:"consecutive_failures"`
	LastSuccessAt       string                `json:"last_success_at"`
	FromCache           bool                  `json:"from_cache"`
	IsStale             bool                  `json:"is_stale"`
	Overlay             bool                  `json:"overlay"`
	Reloads             *watchdog.GuardStatus `json:"reloads,omitempty"`
}

type AcceptedResponse struct {
	Accepted bool `json:"accepted"`
}
