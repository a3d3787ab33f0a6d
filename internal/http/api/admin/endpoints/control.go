package endpoints

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nsyasa/okul-bilgi-pano/internal/http/api"
	"github.com/nsyasa/okul-bilgi-pano/internal/http/api/admin/packets"
	"github.com/nsyasa/okul-bilgi-pano/internal/rotation"
	"github.com/nsyasa/okul-bilgi-pano/internal/watchdog"
)

type ControlController struct {
	controls Controls
}

func NewControlController(controls Controls) *ControlController {
	return &ControlController{controls: controls}
}

func ControlModule(controls Controls) api.Module {
	ctl := NewControlController(controls)
	return api.ModuleFunc(func(c *api.Controller) {
		c.POST("/reload", ctl.reload)
		c.POST("/rotation/select", ctl.selectItem)
	})
}

// POST /api/admin/reload goes through the same cooldown and daily limit as
// watchdog reloads.
func (t *ControlController) reload(ctx *gin.Context) (any, *api.Error) {
	err := t.controls.Reload(ctx.Request.Context())
	switch {
	case errors.Is(err, watchdog.ErrCooldown), errors.Is(err, watchdog.ErrDailyLimit):
		return nil, &api.Error{Code: http.StatusTooManyRequests, Message: err.Error()}
	case err != nil:
		log.Error().Err(err).Msg("operator reload failed")
		return nil, &api.Error{Code: http.StatusServiceUnavailable, Message: "player unavailable"}
	}
	return packets.ReloadResponse{Reloaded: true}, nil
}

// POST /api/admin/rotation/select
func (t *ControlController) selectItem(ctx *gin.Context) (any, *api.Error) {
	var request packets.SelectRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	if err := t.controls.Select(ctx.Request.Context(), rotation.Mode(request.Mode), request.Index); err != nil {
		if ctx.Request.Context().Err() != nil {
			return nil, &api.Error{Code: http.StatusServiceUnavailable, Message: "player unavailable"}
		}
		return nil, &api.Error{Code: http.StatusNotFound, Message: err.Error()}
	}
	return packets.SelectResponse{Mode: request.Mode, Index: request.Index}, nil
}
