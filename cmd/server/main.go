// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/attendguard/internal/config"
	"github.com/tomtom215/attendguard/internal/logging"
	"github.com/tomtom215/attendguard/internal/supervisor"
	"github.com/tomtom215/attendguard/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("db_path", cfg.Database.Path).
		Str("history_backend", cfg.History.Backend).
		Bool("model_enabled", cfg.Risk.ModelEnabled).
		Bool("events_enabled", cfg.Events.Enabled).
		Msg("Starting AttendGuard")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		logging.Fatal().Err(err).Msg("AttendGuard stopped with error")
	}
	logging.Info().Msg("AttendGuard stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	tree.AddMaintenanceService(services.NewJanitorService(c.engine, cfg.Detection.SweepInterval))
	if c.handler != nil {
		tree.AddMessagingService(services.NewEventRouterService(eventRouterFactory(c)))
	}
	tree.AddAPIService(services.NewHTTPServerService(newHTTPServer(cfg, c), cfg.Server.ShutdownTimeout))

	err = tree.Serve(ctx)

	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within shutdown timeout")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
