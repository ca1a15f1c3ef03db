package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

const maxReadingsLimit = 500

// ReadingStore persists humidity samples.
type ReadingStore interface {
	InsertReading(ctx context.Context, r models.HumidityReading) (models.HumidityReading, error)
	ListReadings(ctx context.Context, parcelID *int64, limit int) ([]models.HumidityReading, error)
}

type readingRequest struct {
	Reading  *float64 `json:"lectura" binding:"required"`
	Date     string   `json:"fecha" binding:"required"`
	Location string   `json:"ubicacion" binding:"required"`
	ParcelID *int64   `json:"parcelaId"`
}

// ReadingHandler serves /api/humedad.
type ReadingHandler struct {
	store  ReadingStore
	loc    *time.Location
	logger *zap.Logger
}

// NewReadingHandler constructs the humidity reading handler.
func NewReadingHandler(store ReadingStore, loc *time.Location, logger *zap.Logger) *ReadingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReadingHandler{store: store, loc: loc, logger: logger}
}

// Create records a reading. lectura must be an integer within 0-100.
func (h *ReadingHandler) Create(c *gin.Context) {
	var req readingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lectura, fecha and ubicacion are required"})
		return
	}
	if v := *req.Reading; v < 0 || v > 100 || v != float64(int(v)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lectura must be an integer within 0-100"})
		return
	}
	when, err := parseTimestamp(req.Date, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reading, err := h.store.InsertReading(c.Request.Context(), models.HumidityReading{
		Reading:  int(*req.Reading),
		Date:     when,
		Location: strings.TrimSpace(req.Location),
		ParcelID: req.ParcelID,
	})
	if err != nil {
		h.logger.Error("failed storing humidity reading", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store reading"})
		return
	}
	c.JSON(http.StatusCreated, reading)
}

// List returns recent readings, newest first.
func (h *ReadingHandler) List(c *gin.Context) {
	var parcelID *int64
	if raw := c.Query("parcelaId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parcelaId"})
			return
		}
		parcelID = &id
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxReadingsLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be within 1-500"})
			return
		}
		limit = n
	}

	readings, err := h.store.ListReadings(c.Request.Context(), parcelID, limit)
	if err != nil {
		h.logger.Error("failed listing humidity readings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list readings"})
		return
	}
	if readings == nil {
		readings = []models.HumidityReading{}
	}
	c.JSON(http.StatusOK, readings)
}
