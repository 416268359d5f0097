package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"running-tracker/internal/config"
	"running-tracker/internal/line"
	"running-tracker/internal/logger"
	"running-tracker/internal/repository"
	"running-tracker/internal/server"
	"running-tracker/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		zlog.Sugar().Fatalf("db: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	linkingRepo := repository.NewLinkingRepository(db)

	lineClient, err := line.NewClient(cfg.LineChannelSecret, cfg.LineChannelToken)
	if err != nil {
		zlog.Sugar().Fatalf("line client: %v", err)
	}

	linkingSvc := service.NewLinkingService(userRepo, linkingRepo, zlog)
	reminderSvc := service.NewReminderService(userRepo, scheduleRepo, lineClient, cfg.ReminderWindowMinutes, zlog)

	loc, err := time.LoadLocation(cfg.SchedulerTimezone)
	if err != nil {
		zlog.Warn("unknown scheduler timezone, falling back to UTC",
			zap.String("timezone", cfg.SchedulerTimezone))
		loc = time.UTC
	}

	scheduler := service.NewSchedulerService(loc)
	if _, err := scheduler.ScheduleInterval(cfg.ReminderInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		reminderSvc.Run(ctx, time.Now())
	}); err != nil {
		zlog.Sugar().Fatalf("schedule reminder sweep: %v", err)
	}
	if _, err := scheduler.ScheduleDaily(cfg.CleanupTime, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := linkingSvc.CleanupExpired(ctx, time.Now()); err != nil {
			zlog.Error("linking code cleanup", zap.Error(err))
		}
	}); err != nil {
		zlog.Sugar().Fatalf("schedule code cleanup: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	webhook := line.NewWebhook(lineClient, linkingSvc, zlog)
	handler := server.NewHandler(userRepo, scheduleRepo, linkingSvc, zlog)
	router := server.NewRouter(handler, webhook, cfg.JWTSecret)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: router,
	}

	go func() {
		zlog.Sugar().Infof("starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Sugar().Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Sugar().Fatalf("forced shutdown: %v", err)
	}
	zlog.Info("server stopped")
}
