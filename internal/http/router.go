/* SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/YHatahet/jira-stats/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc any) *gin.Engine {
	if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		rid := uuid.NewString()
		c.Set("request_id", rid)
		c.Header("X-Request-Id", rid)
		c.Next()
		log.Info().Str("rid", rid).Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, svc)

	r.GET("/healthz", h.Healthz)
	r.GET("/api/issues", h.Issues)
	r.GET("/api/quality", h.Quality)
	r.GET("/api/time", h.TimeAnalysis)
	r.GET("/api/workflow", h.Workflow)

	return r
}
