package endpoints

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nsyasa/okul-bilgi-pano/internal/http/api"
	"github.com/nsyasa/okul-bilgi-pano/internal/http/api/tv/packets"
	"github.com/nsyasa/okul-bilgi-pano/internal/player"
	"github.com/nsyasa/okul-bilgi-pano/internal/watchdog"
)

// Display is the part of the player the screen talks to.
type Display interface {
	Snapshot() player.Snapshot
	Subscribe() (<-chan player.Snapshot, func())
	ReportScriptError(message string)
}

// ReloadStatus reports the guarded-reload counters. Optional.
type ReloadStatus interface {
	Status(ctx context.Context, now time.Time) watchdog.GuardStatus
}

var errNotReady = &api.Error{Code: http.StatusServiceUnavailable, Message: "display not ready"}

type DisplayController struct {
	display Display
	reloads ReloadStatus
}

func NewDisplayController(display Display, reloads ReloadStatus) *DisplayController {
	return &DisplayController{display: display, reloads: reloads}
}

func DisplayModule(display Display, reloads ReloadStatus) api.Module {
	ctl := NewDisplayController(display, reloads)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/state", ctl.state)
		c.GET("/status", ctl.status)
		c.GET("/health", ctl.health)
		c.POST("/errors", ctl.reportError)

		// live snapshot stream
		c.Group.GET("/socket", ctl.socket)
	})
}

// GET /api/tv/state
func (d *DisplayController) state(ctx *gin.Context) (any, *api.Error) {
	s := d.display.Snapshot()
	if s.SessionID == "" {
		return nil, errNotReady
	}
	return s, nil
}

// GET /api/tv/status
func (d *DisplayController) status(ctx *gin.Context) (any, *api.Error) {
	s := d.display.Snapshot()
	if s.SessionID == "" {
		return nil, errNotReady
	}
	return packets.StatusResponse{
		Now:     s.Now,
		DayKey:  s.DayKey,
		Status:  s.Status,
		Note:    s.Schedule.Note,
		Preview: s.Preview != nil,
	}, nil
}

// GET /api/tv/health
func (d *DisplayController) health(ctx *gin.Context) (any, *api.Error) {
	s := d.display.Snapshot()
	resp := packets.HealthResponse{
		SessionID:           s.SessionID,
		ConsecutiveFailures: s.Health.ConsecutiveFailures,
		FromCache:           s.FromCache,
		IsStale:             s.IsStale,
		Overlay:             s.Overlay,
	}
	if !s.Health.LastSuccessAt.IsZero() {
		resp.LastSuccessAt = s.Health.LastSuccessAt.Format(time.RFC3339)
	}
	if d.reloads != nil {
		st := d.reloads.Status(ctx.Request.Context(), time.Now())
		resp.Reloads = &st
	}
	return resp, nil
}

// POST /api/tv/errors
func (d *DisplayController) reportError(ctx *gin.Context) (any, *api.Error) {
	var request packets.ScriptErrorRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	log.Debug().Str("source", request.Source).Int("line", request.Line).Msg("script error reported")
	d.display.ReportScriptError(request.Message)
	return packets.AcceptedResponse{Accepted: true}, nil
}
