package router

import (
	"context"
	"net/http"
	"time"

	"template-service/internal/api/handlers/template"
	"template-service/internal/api/middleware"
	"template-service/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Logger         logger.Logger
	MetricsEnabled bool
	MetricsPath    string
	// Checks are run by /healthz, keyed by dependency name.
	Checks map[string]HealthCheck
}

func Setup(h *template.Handler, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(opts.Logger))
	r.Use(middleware.Recovery(opts.Logger))

	r.GET("/healthz", healthz(opts.Checks))
	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.POST("/templates/generate", h.Generate)

	return r
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := gin.H{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
