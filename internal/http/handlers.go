/* SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/YHatahet/jira-stats/internal/adapters/jira"
	"github.com/YHatahet/jira-stats/internal/config"
	"github.com/YHatahet/jira-stats/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type service interface {
	Collection(ctx context.Context, auth jira.Auth, jql, pageToken string) (*domain.CollectionSummary, error)
	Quality(ctx context.Context, auth jira.Auth, jql, pageToken string) (*domain.QualitySummary, error)
	TimeAnalysis(ctx context.Context, auth jira.Auth, jql string, stalledDays int) (*domain.TimeSummary, error)
	Workflow(ctx context.Context, auth jira.Auth, jql string) (*domain.WorkflowSummary, error)
}

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// auth builds upstream credentials from request headers with env fallback.
// Requests with no usable credentials are rejected before any network call.
func (h *Handlers) auth(c *gin.Context) (jira.Auth, bool) {
	a := jira.Auth{
		BaseURL:  c.GetHeader("X-Jira-Base-Url"),
		Token:    c.GetHeader("X-Jira-Token"),
		Username: c.GetHeader("X-Jira-Username"),
		Password: c.GetHeader("X-Jira-Password"),
	}
	if a.BaseURL == "" { a.BaseURL = h.cfg.JiraBaseURL }
	if a.Token == "" && a.Username == "" {
		a.Token = h.cfg.JiraPAT
		a.Username = h.cfg.JiraUsername
		a.Password = h.cfg.JiraPassword
	}
	if a.Missing() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "jira credentials missing", "request_id": c.GetString("request_id")})
		return jira.Auth{}, false
	}
	return a, true
}

// fail maps an error onto the upstream status when known, 502 otherwise.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusBadGateway
	var apiErr *jira.APIError
	details := ""
	if errors.As(err, &apiErr) {
		if apiErr.Status > 0 { status = apiErr.Status }
		details = apiErr.Body
	}
	h.log.Error().Err(err).Int("status", status).Str("rid", c.GetString("request_id")).Msg("upstream failure")
	body := gin.H{"error": err.Error(), "request_id": c.GetString("request_id")}
	if details != "" { body["details"] = details }
	c.JSON(status, body)
}

func (h *Handlers) Issues(c *gin.Context) {
	a, ok := h.auth(c)
	if !ok { return }
	out, err := h.svc.Collection(c.Request.Context(), a, c.Query("jql"), c.Query("pageToken"))
	if err != nil { h.fail(c, err); return }
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) Quality(c *gin.Context) {
	a, ok := h.auth(c)
	if !ok { return }
	out, err := h.svc.Quality(c.Request.Context(), a, c.Query("jql"), c.Query("pageToken"))
	if err != nil { h.fail(c, err); return }
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) TimeAnalysis(c *gin.Context) {
	a, ok := h.auth(c)
	if !ok { return }
	threshold := 0
	if v := c.Query("threshold"); v != "" {
		if n, err := strconv.Atoi(v); err == nil { threshold = n }
	}
	out, err := h.svc.TimeAnalysis(c.Request.Context(), a, c.Query("jql"), threshold)
	if err != nil { h.fail(c, err); return }
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) Workflow(c *gin.Context) {
	a, ok := h.auth(c)
	if !ok { return }
	out, err := h.svc.Workflow(c.Request.Context(), a, c.Query("jql"))
	if err != nil { h.fail(c, err); return }
	c.JSON(http.StatusOK, out)
}
