// AttendGuard - Proxy Attendance Detection for QR Check-ins
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendguard

/*
Package supervisor provides process supervision for AttendGuard using suture v4.

The tree isolates failures per layer:

	RootSupervisor ("attendguard")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   └── JanitorService: expires session windows and last-seen entries
	├── MessagingSupervisor ("messaging-layer")
	│   └── EventRouterService: check-in topic consumer (if EVENTS_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted with suture's backoff; the other layers keep
running. Cancelling the context passed to Serve stops every service, each
bounded by TreeConfig.ShutdownTimeout, and UnstoppedServiceReport lists any
that did not return in time.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMaintenanceService(services.NewJanitorService(engine, cfg.Detection.SweepInterval))
	tree.AddMessagingService(services.NewEventRouterService(newRouter))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

Supervisor events (start, failure, backoff) are logged through sutureslog,
which writes to the zerolog global logger via logging.NewSlogLogger.
*/
package supervisor
