package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vigilance-tracker-api/internal/dto"
	"github.com/noah-isme/vigilance-tracker-api/internal/middleware"
	"github.com/noah-isme/vigilance-tracker-api/internal/models"
	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
	"github.com/noah-isme/vigilance-tracker-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context, actor models.Actor) (*models.DashboardSummary, bool, error)
	Drilldown(ctx context.Context, actor models.Actor, q dto.DrilldownQuery) (*dto.DrilldownResponse, error)
	Pending(ctx context.Context, actor models.Actor) (*models.PendingCount, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Summary godoc
// @Summary Role dashboard
// @Description KPI cards, stage counts and SLA counts over the petitions visible to the caller
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	summary, cacheHit, err := h.service.Summary(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// Drilldown godoc
// @Summary Dashboard drill-down
// @Tags Dashboard
// @Produce json
// @Param metric query string true "Metric key, e.g. stage_2, status:lodged, sla_breached"
// @Param mode query string false "direct or permission"
// @Success 200 {object} response.Envelope
// @Router /dashboard/drilldown [get]
func (h *DashboardHandler) Drilldown(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	q := dto.DrilldownQuery{
		Metric: strings.TrimSpace(c.Query("metric")),
		Mode:   strings.TrimSpace(c.Query("mode")),
	}
	if q.Metric == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "metric is required"))
		return
	}
	res, err := h.service.Drilldown(c.Request.Context(), actor, q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Pending godoc
// @Summary Pending work count
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/pending [get]
func (h *DashboardHandler) Pending(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Pending(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
