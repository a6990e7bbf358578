package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/config"
	"github.com/zfogg/paddock/internal/database"
	"github.com/zfogg/paddock/internal/kernel"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, envFileLoaded, err := config.Load()
	if err != nil {
		// The logger is not up yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Initialize(logger.Options{
		Level:       cfg.LogLevel,
		File:        cfg.LogFile,
		Environment: cfg.Environment,
	}); err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("=== Paddock server starting ===",
		zap.String("environment", cfg.Environment),
		zap.Bool("env_file", envFileLoaded))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  "paddock-api",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampling,
	})
	if err != nil {
		logger.Log.Warn("Tracing disabled", zap.Error(err))
	}

	k, err := kernel.Boot(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("Failed to boot", zap.Error(err))
	}
	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := k.Start(ctx); err != nil {
		logger.Log.Fatal("Failed to start background services", zap.Error(err))
	}

	h, authHandlers := newHandlers(cfg, k)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r, limiters := newRouter(cfg, k, h, authHandlers)
	for _, rl := range limiters {
		k.OnCleanup(func(context.Context) error {
			rl.Stop()
			return nil
		})
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Paddock API listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := k.Cleanup(shutdownCtx); err != nil {
		logger.Log.Warn("Cleanup finished with errors", zap.Error(err))
	}
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}

	logger.Log.Info("Server exited")
}
