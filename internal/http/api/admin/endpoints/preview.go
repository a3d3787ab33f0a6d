package endpoints

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nsyasa/okul-bilgi-pano/internal/clock"
	"github.com/nsyasa/okul-bilgi-pano/internal/http/api"
	"github.com/nsyasa/okul-bilgi-pano/internal/http/api/admin/packets"
	"github.com/nsyasa/okul-bilgi-pano/internal/rotation"
)

const defaultPreviewTTL = time.Hour

// Controls is the operator side of the player.
type Controls interface {
	Refresh(ctx context.Context) error
	Reload(ctx context.Context) error
	Select(ctx context.Context, mode rotation.Mode, index int) error
}

type PreviewController struct {
	preview  *clock.Preview
	controls Controls
}

func NewPreviewController(preview *clock.Preview, controls Controls) *PreviewController {
	return &PreviewController{preview: preview, controls: controls}
}

func PreviewModule(preview *clock.Preview, controls Controls) api.Module {
	ctl := NewPreviewController(preview, controls)
	return api.ModuleFunc(func(c *api.Controller) {
		c.GET("/preview", ctl.getPreview)
		c.POST("/preview", ctl.setPreview)
		c.DELETE("/preview", ctl.clearPreview)
	})
}

// GET /api/admin/preview
func (p *PreviewController) getPreview(ctx *gin.Context) (any, *api.Error) {
	return p.response(), nil
}

// POST /api/admin/preview
func (p *PreviewController) setPreview(ctx *gin.Context) (any, *api.Error) {
	var request packets.PreviewRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		return nil, api.BadRequest(err)
	}

	mode := clock.PreviewMode(request.Mode)
	if mode == "" {
		mode = clock.PreviewFrozen
	}
	ttl := defaultPreviewTTL
	if request.TTLSeconds != 0 {
		ttl = time.Duration(request.TTLSeconds) * time.Second
	}

	o, err := p.preview.Set(request.At, mode, ttl)
	if errors.Is(err, clock.ErrInvalidPreview) {
		return nil, &api.Error{Code: http.StatusBadRequest, Message: "mode must be frozen or running and ttl between 1s and 24h"}
	}
	if err != nil {
		return nil, &api.Error{Code: http.StatusInternalServerError, Message: "failed to set preview"}
	}
	log.Info().Time("at", o.At).Str("mode", string(o.Mode)).Time("expires_at", o.ExpiresAt).Msg("preview clock set")

	p.refresh(ctx.Request.Context())
	return p.response(), nil
}

// DELETE /api/admin/preview
func (p *PreviewController) clearPreview(ctx *gin.Context) (any, *api.Error) {
	p.preview.Clear()
	log.Info().Msg("preview clock cleared")

	p.refresh(ctx.Request.Context())
	return p.response(), nil
}

// refresh re-renders the display against the new clock. The tick would pick
// it up within a second anyway, so a failure is only logged.
func (p *PreviewController) refresh(ctx context.Context) {
	if p.controls == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.controls.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to refresh display after preview change")
	}
}

func (p *PreviewController) response() packets.PreviewResponse {
	resp := packets.PreviewResponse{DisplayNow: p.preview.Now()}
	if o, ok := p.preview.Active(); ok {
		at, expires := o.At, o.ExpiresAt
		resp.Active = true
		resp.At = &at
		resp.Mode = string(o.Mode)
		resp.ExpiresAt = &expires
	}
	return resp
}
