package server

import (
	"bytes"
	"context"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/json"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/common/expfmt"

	"github.com/dyike/StockAnalyzer/internal/metrics"
	"github.com/dyike/StockAnalyzer/internal/storage"
	"github.com/dyike/StockAnalyzer/models"
)

// Jobs is the part of the job runner the handlers use.
type Jobs interface {
	Submit(ctx context.Context, params models.AnalysisParams) (string, error)
	Get(ctx context.Context, sessionID string) (*models.JobRecord, error)
}

type Handler struct {
	jobs Jobs
}

func NewHandler(jobs Jobs) *Handler {
	return &Handler{jobs: jobs}
}

// Analyze starts a job for the posted parameter object.
// POST /analyze
func (h *Handler) Analyze(ctx context.Context, c *app.RequestContext) {
	var params models.AnalysisParams
	if err := json.Unmarshal(c.Request.Body(), &params); err != nil || params == nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "request body must be a JSON object"})
		return
	}

	id, err := h.jobs.Submit(ctx, params)
	if err != nil {
		hlog.CtxErrorf(ctx, "submit analysis: %v", err)
		c.JSON(consts.StatusServiceUnavailable, utils.H{"error": err.Error()})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"session_id": id})
}

// Results returns the job record of a session.
// GET /results/:session_id
func (h *Handler) Results(ctx context.Context, c *app.RequestContext) {
	id := c.Param("session_id")
	rec, err := h.jobs.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(consts.StatusNotFound, utils.H{"error": "session not found", "session_id": id})
		return
	}
	if err != nil {
		hlog.CtxErrorf(ctx, "load session %s: %v", id, err)
		c.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error(), "session_id": id})
		return
	}
	c.JSON(consts.StatusOK, rec)
}

func (h *Handler) Health(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "healthy"})
}

func (h *Handler) Root(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"message": "Stock Analyzer API",
		"endpoints": utils.H{
			"analyze": "/analyze - POST request to start analysis",
			"results": "/results/{session_id} - GET request to fetch results",
			"health":  "/health - GET liveness check",
			"metrics": "/metrics - GET Prometheus metrics",
		},
	})
}

func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(ctx, "gather metrics: %v", err)
		c.String(consts.StatusInternalServerError, err.Error())
		return
	}
	c.Data(consts.StatusOK, string(expfmt.NewFormat(expfmt.TypeTextPlain)), buf.Bytes())
}
