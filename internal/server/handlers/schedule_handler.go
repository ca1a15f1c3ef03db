package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
)

// ScheduleStore persists irrigation schedules.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, sc models.IrrigationSchedule) (models.IrrigationSchedule, error)
	ListSchedules(ctx context.Context, from, to time.Time) ([]models.IrrigationSchedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
}

// ScheduleCanceller aborts the run a schedule started.
type ScheduleCanceller interface {
	CancelSchedule(scheduleID int64) bool
}

// ScheduleHandler serves /api/riego.
type ScheduleHandler struct {
	store    ScheduleStore
	canceler ScheduleCanceller
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewScheduleHandler constructs the schedule handler.
func NewScheduleHandler(store ScheduleStore, canceler ScheduleCanceller, loc *time.Location, logger *zap.Logger) *ScheduleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleHandler{store: store, canceler: canceler, loc: loc, now: time.Now, logger: logger}
}

// Create validates and stores a schedule.
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req models.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fecha, horaInicio, horaFin and parcela are required"})
		return
	}

	schedule, err := req.Normalize()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.store.CreateSchedule(c.Request.Context(), schedule)
	if err != nil {
		h.logger.Error("failed creating schedule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create schedule"})
		return
	}

	h.logger.Info("irrigation scheduled",
		zap.Int64("schedule_id", saved.ID),
		zap.String("parcel", saved.ParcelName),
		zap.String("date", saved.Date),
		zap.String("start", saved.StartTime),
		zap.String("end", saved.EndTime))
	c.JSON(http.StatusCreated, saved)
}

// List returns the schedules of one day, today in the service zone by default.
func (h *ScheduleHandler) List(c *gin.Context) {
	day := h.now().In(h.loc)
	if raw := c.Query("fecha"); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, h.loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "fecha must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	schedules, err := h.store.ListSchedules(c.Request.Context(), day, day)
	if err != nil {
		h.logger.Error("failed listing schedules", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules"})
		return
	}
	if schedules == nil {
		schedules = []models.IrrigationSchedule{}
	}
	c.JSON(http.StatusOK, schedules)
}

// Delete removes a schedule and cancels the run it started.
func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	err := h.store.DeleteSchedule(c.Request.Context(), id)
	if errors.Is(err, models.ErrScheduleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed deleting schedule", zap.Int64("schedule_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete schedule"})
		return
	}

	cancelled := h.canceler.CancelSchedule(id)
	c.JSON(http.StatusOK, gin.H{"deleted": id, "watering_cancelled": cancelled})
}
