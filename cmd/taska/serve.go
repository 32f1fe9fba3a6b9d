package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"taska/internal/bot"
	"taska/internal/geo"
	"taska/internal/httpapi"
	"taska/internal/location"
	"taska/internal/logging"
	"taska/internal/model"
	"taska/internal/service"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler, proximity monitor, Telegram bot and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	log := logging.Logger
	cfg := a.cfg

	latest := location.NewLatest(cfg.LocationMaxAge)
	var positions service.PositionProvider = latest
	if cfg.Fallback != nil {
		positions = location.Fallback{
			Primary:   latest,
			Secondary: location.Static(geo.Point{Latitude: cfg.Fallback.Latitude, Longitude: cfg.Fallback.Longitude}),
		}
	}

	sinks := service.MultiSink{service.LogSink{Log: logging.Component("notify")}}
	var api *tgbotapi.BotAPI
	if cfg.TelegramToken != "" {
		api, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create bot api: %w", err)
		}
		telegram := bot.NewSink(api, a.members, logging.Component("telegram"))
		sinks = append(sinks, service.NewBreakerSink("telegram", telegram, logging.Component("telegram")))
	} else {
		log.Warn("TELEGRAM_TOKEN is empty, bot disabled")
	}

	taskSvc := a.taskService(sinks)
	if _, err := taskSvc.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile: %w", err)
	}

	scheduler := service.NewSchedulerService(time.Local, logging.Component("scheduler"))
	if _, err := scheduler.ScheduleInterval(cfg.ReconcileInterval, func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		res, err := taskSvc.Reconcile(jobCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("scheduled reconcile")
			return
		}
		if len(res.NewTasks) > 0 || len(res.Errors) > 0 {
			log.WithField("created", len(res.NewTasks)).WithField("failed", len(res.Errors)).Info("scheduled reconcile")
		}
	}); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}

	monitor := service.NewProximityMonitor(a.tasks, positions, cfg.DefaultRadius, func(t model.Task) {
		n := service.NearbyNotification(t, time.Now())
		if err := sinks.Notify(ctx, n); err != nil {
			log.WithError(err).WithField("task_id", t.ID).Warn("deliver nearby notification")
		}
	}, logging.Component("proximity"))
	if err := monitor.Start(ctx, scheduler, cfg.ProximityInterval); err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Stop()
	defer monitor.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.HTTPAddr != "" {
		handler := httpapi.NewHandler(taskSvc, latest, monitor, logging.Component("http"))
		server := httpapi.NewServer(cfg.HTTPAddr, handler, logging.Component("http"))
		g.Go(func() error { return server.Run(gctx) })
	}
	if api != nil {
		telegramBot := bot.New(api, a.members, taskSvc, latest, monitor, logging.Component("bot"))
		g.Go(func() error { return telegramBot.Start(gctx) })
	}

	log.Info("taska started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	<-ctx.Done()
	log.Info("shutdown complete")
	return nil
}
