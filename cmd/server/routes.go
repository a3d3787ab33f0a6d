package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nsyasa/okul-bilgi-pano/internal/http/api"
	"github.com/nsyasa/okul-bilgi-pano/internal/http/middleware"
	adminapi "github.com/nsyasa/okul-bilgi-pano/internal/http/api/admin/endpoints"
	tvapi "github.com/nsyasa/okul-bilgi-pano/internal/http/api/tv/endpoints"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, s *Services) {
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
		},
		AllowCredentials: false,
	}))

	// the screen polls status every second
	api.MountGroup(r, api.GroupConfig{
		Prefix:     "/api/tv",
		Middleware: []gin.HandlerFunc{middleware.RequestLogger("/api/tv/status", "/api/tv/state")},
	},
		tvapi.DisplayModule(s.Player, s.Guard),
	)

	api.MountGroup(r, api.GroupConfig{
		Prefix:     "/api/admin",
		Middleware: []gin.HandlerFunc{middleware.RequestLogger()},
	},
		adminapi.PreviewModule(s.Preview, s.Player),
		adminapi.ControlModule(s.Player),
	)

	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
}
