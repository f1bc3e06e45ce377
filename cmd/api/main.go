/* SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YHatahet/jira-stats/internal/adapters/jira"
	"github.com/YHatahet/jira-stats/internal/config"
	httpapi "github.com/YHatahet/jira-stats/internal/http"
	"github.com/YHatahet/jira-stats/internal/jobs"
	"github.com/YHatahet/jira-stats/internal/logger"
	"github.com/YHatahet/jira-stats/internal/services"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	// Adapters
	jc := jira.NewClient(cfg, log)

	// Services
	svc := services.New(cfg, log, jc)

	// HTTP server (Gin)
	router := httpapi.NewRouter(cfg, log, svc)

	// Cron
	cron := jobs.NewCron(cfg, log, svc)
	cron.Start()
	defer cron.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(cfg.HTTPAddr) }()
	log.Info().Str("addr", cfg.HTTPAddr).Str("pagination", cfg.Pagination).Msg("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil { log.Error().Err(err).Msg("http server error") }
	}

	time.Sleep(500 * time.Millisecond)
}
