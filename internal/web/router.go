package web

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mlindner/mailsort/internal/instrumentation"
	"github.com/mlindner/mailsort/internal/server"
)

// Config wires the router's dependencies. Mailbox and Runner are required;
// Health and Metrics are optional.
type Config struct {
	Mailbox Mailbox
	Runner  RunTrigger
	Health  *server.HealthChecker
	Metrics *instrumentation.Metrics
}

// Router wraps the engine serving the web UI
type Router struct {
	Engine *gin.Engine
}

// NewRouter builds the web UI router from the given configuration.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Mailbox == nil {
		return nil, fmt.Errorf("mailbox client is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics(cfg.Metrics))
	r.SetHTMLTemplate(pageTemplates())

	h := &Handlers{mailbox: cfg.Mailbox, runner: cfg.Runner, metrics: cfg.Metrics}

	r.GET("/", h.Index)
	r.POST("/run", h.Run)
	r.GET("/folders", h.Folders)
	r.GET("/folders/:id", h.Folder)
	r.GET("/messages/:id", h.Message)

	if cfg.Health != nil {
		r.GET("/healthz", gin.WrapH(cfg.Health.LivenessHandler()))
		r.GET("/healthz/detailed", gin.WrapH(cfg.Health.DetailedHealthHandler()))
		r.GET("/readyz", gin.WrapH(cfg.Health.ReadinessHandler()))
	}

	return &Router{Engine: r}, nil
}

// requestMetrics records request metrics when metrics are configured. The
// recorded path is the route template, keeping label cardinality bounded.
func requestMetrics(metrics *instrumentation.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
