package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	reportDomain "github.com/alkimyk/cmr/internal/report/domain"
	"github.com/alkimyk/cmr/pkg/utils"
)

const (
	dateLayout   = "2006-01-02"
	defaultRange = 30 // días
)

type ReportService interface {
	DailyActivity(ctx context.Context, from, to time.Time) ([]reportDomain.DailyActivity, error)
	Totals(ctx context.Context, from, to time.Time) ([]reportDomain.ResourceTotals, error)
}

// ReportHandler expone los KPIs de actividad del catálogo.
type ReportHandler struct {
	service ReportService
	log     *zap.Logger
	now     func() time.Time
}

func NewReportHandler(service ReportService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{service: service, log: log, now: time.Now}
}

// dateRange lee from/to (YYYY-MM-DD). Sin parámetros cubre los últimos 30 días.
func (h *ReportHandler) dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	to := reportDomain.DayStart(h.now())
	from := to.AddDate(0, 0, -(defaultRange - 1))

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			utils.SendBadRequest(c, "invalid from date, expected YYYY-MM-DD")
			return from, to, false
		}
		from = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			utils.SendBadRequest(c, "invalid to date, expected YYYY-MM-DD")
			return from, to, false
		}
		to = t
	}
	return from, to, true
}

// Activity endpoint GET /reports/activity
func (h *ReportHandler) Activity(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	rows, err := h.service.DailyActivity(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, rows)
}

// KPIs endpoint GET /reports/kpis
func (h *ReportHandler) KPIs(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	totals, err := h.service.Totals(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, gin.H{
		"from":      from.Format(dateLayout),
		"to":        to.Format(dateLayout),
		"resources": totals,
	})
}

func (h *ReportHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, reportDomain.ErrInvalidRange) {
		utils.SendBadRequest(c, "to must not be before from")
		return
	}
	h.log.Error("Report query failed", zap.String("path", c.FullPath()), zap.Error(err))
	utils.SendInternalServerError(c, "internal error")
}

// RegisterReportRoutes publica los endpoints bajo /reports.
func RegisterReportRoutes(r gin.IRouter, handler *ReportHandler) {
	group := r.Group("/reports")
	{
		group.GET("/activity", handler.Activity)
		group.GET("/kpis", handler.KPIs)
	}
}
