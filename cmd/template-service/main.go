// cmd/template-service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"template-service/internal/api/handlers/template"
	"template-service/internal/api/router"
	"template-service/internal/api/server"
	"template-service/internal/common/cache"
	"template-service/internal/common/camunda"
	"template-service/internal/common/config"
	"template-service/internal/common/httpclient"
	"template-service/internal/common/logger"
	"template-service/internal/common/observability"
	generateimage "template-service/internal/workers/templates/generate-image"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func retryPolicy(c config.RetryClientConfig) httpclient.RetryPolicy {
	return httpclient.RetryPolicy{
		MaxAttempts: c.MaxAttempts,
		Backoff:     c.BackoffSchedule(),
		Timeout:     config.GetDuration(c.Timeout),
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting template service...",
		zap.String("environment", cfg.App.Environment),
		zap.String("renderUrl", cfg.Render.URL),
		zap.String("uploadUrl", cfg.Upload.URL),
	)

	jaegerEndpoint := ""
	if cfg.Tracing.Enabled {
		jaegerEndpoint = cfg.Tracing.JaegerEndpoint
	}
	obs, err := observability.New(cfg.App.Name, jaegerEndpoint)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())

	ctx := context.Background()
	checks := map[string]router.HealthCheck{}

	// --- Optional upload cache ---
	var uploadCache generateimage.UploadCache
	if cfg.Cache.Redis.Address != "" {
		redisClient := cache.NewRedis(cfg.Cache.Redis)
		err = retryWithBackoff(func() error {
			return redisClient.Ping(ctx)
		}, 5, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("upload cache disabled", zap.Error(err))
			_ = redisClient.Close()
		} else {
			defer redisClient.Close()
			uploadCache = cache.NewUploadCache(redisClient.Client, time.Duration(cfg.Cache.Redis.TTL)*time.Second)
			checks["redis"] = redisClient.Ping
			zapLog.Info("Redis upload cache connected", zap.String("address", cfg.Cache.Redis.Address))
		}
	}

	// --- Pipeline ---
	pipelineConfig := generateimage.ConfigFromAppConfig(cfg)
	if err := pipelineConfig.Validate(); err != nil {
		zapLog.Fatal("invalid pipeline configuration", zap.Error(err))
	}

	service := generateimage.NewService(generateimage.ServiceDependencies{
		Logger:        log,
		Uploader:      httpclient.NewUploadClient(retryPolicy(cfg.Upload), log),
		Renderer:      httpclient.NewRenderClient(retryPolicy(cfg.Render), log),
		Cache:         uploadCache,
		Observability: obs,
	}, pipelineConfig)

	// --- Optional workflow worker ---
	var jobHandler *generateimage.Handler
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()

		jobHandler, err = generateimage.NewHandler(generateimage.HandlerOptions{
			Config:    pipelineConfig,
			Camunda:   zeebe,
			Service:   service,
			Logger:    log,
			ZapLogger: zapLog,
		})
		if err != nil {
			zapLog.Fatal("worker setup failed", zap.Error(err))
		}
		if err := jobHandler.Register(); err != nil {
			zapLog.Fatal("worker registration failed", zap.Error(err))
		}
		checks["camunda"] = jobHandler.HealthCheck
	}

	// --- HTTP boundary ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.Setup(
		template.NewHandler(service, log, cfg.Server.MaxUploadSizeMB),
		router.Options{
			Logger:         log,
			MetricsEnabled: cfg.Metrics.Enabled,
			MetricsPath:    cfg.Metrics.Path,
			Checks:         checks,
		},
	)
	srv := server.New(fmt.Sprintf(":%d", cfg.Server.Port), engine, pipelineConfig.RequestTimeout)

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if jobHandler != nil {
		jobHandler.Close()
	}

	zapLog.Info("Template service stopped gracefully")
}
