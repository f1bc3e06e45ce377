package jobs

import (
	"context"
	"time"

	"github.com/YHatahet/jira-stats/internal/adapters/jira"
	"github.com/YHatahet/jira-stats/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type service interface {
	RefreshFields(ctx context.Context, auth jira.Auth) error
}

type Cron struct {
	cfg config.Config
	log zerolog.Logger
	svc service
	c   *cron.Cron
}

// NewCron schedules the periodic custom-field re-discovery. It only runs
// when env-configured credentials exist; header-authenticated deployments
// keep the static POINTS_FIELD value.
func NewCron(cfg config.Config, log zerolog.Logger, svc service) *Cron {
	loc, _ := time.LoadLocation(cfg.TZ)
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, c: c}
	_, _ = c.AddFunc(cfg.FieldRefreshCron, cr.refresh)
	return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) refresh() {
	auth := jira.Auth{
		BaseURL:  cr.cfg.JiraBaseURL,
		Token:    cr.cfg.JiraPAT,
		Username: cr.cfg.JiraUsername,
		Password: cr.cfg.JiraPassword,
	}
	if auth.Missing() {
		cr.log.Debug().Msg("cron: no env jira credentials, skipping field refresh")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	cr.log.Info().Msg("cron: field refresh")
	if err := cr.svc.RefreshFields(ctx, auth); err != nil {
		cr.log.Error().Err(err).Msg("cron: field refresh failed")
	}
}
