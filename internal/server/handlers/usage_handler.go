package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/service/reporting"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UsageRecorder is the write path into the usage log.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, record models.WaterUsageRecord) (models.WaterUsageRecord, error)
}

// UsageReports reads and aggregates the usage log.
type UsageReports interface {
	Records(ctx context.Context, filter models.UsageFilter) ([]models.WaterUsageRecord, error)
	Summary(ctx context.Context, filter models.UsageFilter, by reporting.GroupBy) ([]models.UsageSummary, error)
	ExportXLSX(ctx context.Context, filter models.UsageFilter, w io.Writer) error
}

// ReportFinder loads stored daily report snapshots.
type ReportFinder interface {
	FindDailyReport(ctx context.Context, date string) (models.DailyUsageReport, error)
}

type usageRequest struct {
	ParcelID   int64   `json:"parcelaId" binding:"required"`
	ParcelName string  `json:"parcelaNombre" binding:"required"`
	Liters     float64 `json:"litros"`
	Date       string  `json:"fecha"`
}

// UsageHandler serves /api/agua.
type UsageHandler struct {
	recorder UsageRecorder
	reports  UsageReports
	finder   ReportFinder
	loc      *time.Location
	logger   *zap.Logger
}

// NewUsageHandler constructs the water usage handler. finder may be nil.
func NewUsageHandler(recorder UsageRecorder, reports UsageReports, finder ReportFinder, loc *time.Location, logger *zap.Logger) *UsageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &UsageHandler{recorder: recorder, reports: reports, finder: finder, loc: loc, logger: logger}
}

// HasReports reports whether stored snapshots can be served.
func (h *UsageHandler) HasReports() bool {
	return h.finder != nil
}

// Create appends a usage record. litros must be positive.
func (h *UsageHandler) Create(c *gin.Context) {
	var req usageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parcelaId and parcelaNombre are required"})
		return
	}
	if req.Liters <= 0 || math.IsNaN(req.Liters) || math.IsInf(req.Liters, 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "litros must be greater than 0"})
		return
	}

	record := models.WaterUsageRecord{
		ParcelID:   req.ParcelID,
		ParcelName: strings.TrimSpace(req.ParcelName),
		Liters:     req.Liters,
	}
	if req.Date != "" {
		when, err := parseTimestamp(req.Date, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		record.Timestamp = when
	}

	saved, err := h.recorder.RecordUsage(c.Request.Context(), record)
	if err != nil {
		h.logger.Error("failed recording water usage", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record usage"})
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// List returns the usage log for the day filter, oldest first.
func (h *UsageHandler) List(c *gin.Context) {
	filter, err := usageFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.reports.Records(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed listing water usage", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list usage"})
		return
	}
	if records == nil {
		records = []models.WaterUsageRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// Summary aggregates usage by day or by parcel.
func (h *UsageHandler) Summary(c *gin.Context) {
	filter, err := usageFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	by, err := reporting.ParseGroupBy(c.Query("agrupar"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.reports.Summary(c.Request.Context(), filter, by)
	if err != nil {
		h.logger.Error("failed summarising water usage", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to summarise usage"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agrupar": by, "resumen": summary})
}

// Export streams the usage log and its per-parcel summary as an xlsx workbook.
func (h *UsageHandler) Export(c *gin.Context) {
	filter, err := usageFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := h.reports.ExportXLSX(c.Request.Context(), filter, &buf); err != nil {
		h.logger.Error("failed exporting water usage", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export usage"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(filter)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Report returns the stored snapshot of one day.
func (h *UsageHandler) Report(c *gin.Context) {
	date := c.Param("fecha")
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fecha must be YYYY-MM-DD"})
		return
	}
	if h.finder == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report snapshots are not enabled"})
		return
	}

	report, err := h.finder.FindDailyReport(c.Request.Context(), date)
	if errors.Is(err, models.ErrReportNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed loading daily report", zap.String("date", date), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func exportFilename(filter models.UsageFilter) string {
	name := "uso_agua"
	if filter.From != "" {
		name += "_" + filter.From
	}
	if filter.To != "" {
		name += "_" + filter.To
	}
	return name + ".xlsx"
}
