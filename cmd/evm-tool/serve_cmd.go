package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/events"
	"github.com/3chihiro/evm-tool/modules/schedule/infrastructure/files"
	"github.com/3chihiro/evm-tool/modules/schedule/presentation/controllers"
	"github.com/3chihiro/evm-tool/modules/schedule/services"
	"github.com/3chihiro/evm-tool/pkg/configuration"
	"github.com/3chihiro/evm-tool/pkg/eventbus"
	"github.com/3chihiro/evm-tool/pkg/logging"
	"github.com/3chihiro/evm-tool/pkg/metrics"
	"github.com/3chihiro/evm-tool/pkg/middleware"
	"github.com/3chihiro/evm-tool/pkg/server"
)

type serveOptions struct {
	addr     string
	envFiles []string
	load     string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schedule API and the drag WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default from PORT and GO_APP_ENV)")
	cmd.Flags().StringSliceVar(&opts.envFiles, "env-file", configuration.DefaultEnvFiles, "Env files to load before the process environment")
	cmd.Flags().StringVar(&opts.load, "load", "", "Schedule CSV to import at startup")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	conf, err := configuration.Load(opts.envFiles)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer conf.Unload()
	logger := conf.Logger()

	svc, err := newScheduleService(conf, logger)
	if err != nil {
		return err
	}
	if opts.load != "" {
		text, err := files.ReadTextFile(opts.load)
		if err != nil {
			return withCode(exitIO, err)
		}
		lctx := logging.WithLogger(ctx, logrus.NewEntry(logger))
		if _, err := svc.Import(lctx, opts.load, text); err != nil {
			return withCode(exitValidation, err)
		}
	}

	addr := conf.SocketAddress
	if opts.addr != "" {
		addr = opts.addr
	}
	srv := newHTTPServer(conf, logger, svc)
	logger.WithField("addr", addr).Info("Listening on http://" + addr)
	if err := srv.Start(ctx, addr, conf.ShutdownTimeout); err != nil {
		return withCode(exitIO, fmt.Errorf("serve: %w", err))
	}
	return nil
}

func newScheduleService(conf *configuration.Configuration, logger *logrus.Logger) (*services.ScheduleService, error) {
	cal, err := conf.BuildCalendar()
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	mode, err := services.ParseUnknownDepsMode(conf.Import.UnknownDeps)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}

	bus := eventbus.New(logger)
	if _, err := bus.Subscribe(func(e *events.ScheduleCommittedV1) {
		logger.WithFields(logrus.Fields{
			"event_id":    e.EventID.String(),
			"change_type": e.ChangeType,
			"task_ids":    e.TaskIDs,
		}).Debug("schedule.event.committed")
	}); err != nil {
		return nil, err
	}
	if _, err := bus.Subscribe(func(e *events.CalendarChangedV1) {
		logger.WithFields(logrus.Fields{
			"event_id":     e.EventID.String(),
			"holidays":     len(e.Holidays),
			"off_weekdays": e.OffWeekdays,
		}).Debug("schedule.event.calendar_changed")
	}); err != nil {
		return nil, err
	}

	return services.NewScheduleService(bus, cal, services.Settings{
		Import: services.ImportOptions{UnknownDeps: mode},
		Drag: services.DragOptions{
			PxPerDay:          conf.Editor.PxPerDay,
			LinkedShifts:      conf.Editor.LinkedShifts,
			ActualFollowsPlan: conf.Editor.ActualFollowsPlan,
		},
		HistoryLimit: conf.Editor.HistoryLimit,
	}), nil
}

func newHTTPServer(conf *configuration.Configuration, logger *logrus.Logger, svc *services.ScheduleService) *server.HTTPServer {
	ctrls := []server.Controller{
		controllers.NewScheduleAPIController(svc),
		controllers.NewDragController(svc, conf.AllowedOrigins),
	}
	if conf.Prometheus.Enabled {
		ctrls = append(ctrls, metrics.NewPrometheusController(conf.Prometheus.Path, nil))
	}
	mws := []mux.MiddlewareFunc{middleware.WithLogger(logger)}
	if conf.RateLimit.Enabled {
		mws = append(mws, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerPeriod: conf.RateLimit.GlobalRPS,
			Store:             middleware.NewMemoryStore(),
		}))
	}
	return server.NewHTTPServer(ctrls, server.Options{
		AllowedOrigins: conf.AllowedOrigins,
		Middlewares:    mws,
	})
}
