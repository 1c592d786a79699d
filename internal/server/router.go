package server

import (
	"context"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/dyike/StockAnalyzer/internal/metrics"
)

type Router struct {
	handler *Handler
}

func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Build creates the hertz server listening on addr with every route
// registered. The caller owns Run and Shutdown.
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{
		server.WithHostPorts(addr),
		server.WithExitWaitTime(5 * time.Second),
	}, opts...)
	h := server.Default(opts...)
	h.Use(observe)

	h.GET("/", r.handler.Root)
	h.GET("/health", r.handler.Health)
	h.GET("/metrics", r.handler.Metrics)
	h.POST("/analyze", r.handler.Analyze)
	h.GET("/results/:session_id", r.handler.Results)
	return h
}

func observe(ctx context.Context, c *app.RequestContext) {
	start := time.Now()
	c.Next(ctx)

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	code := c.Response.StatusCode()
	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	hlog.CtxDebugf(ctx, "%s %s -> %d (%s)", c.Method(), c.Path(), code, time.Since(start).Round(time.Microsecond))
}
