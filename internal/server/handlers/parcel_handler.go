package handlers

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/irrigation"
)

// ParcelStore is the parcel persistence used by the HTTP layer.
type ParcelStore interface {
	ListParcels(ctx context.Context) ([]models.Parcel, error)
	CreateParcel(ctx context.Context, p models.Parcel) (models.Parcel, error)
	GetParcel(ctx context.Context, id int64) (models.Parcel, error)
	SetParcelHumidity(ctx context.Context, id int64, humidity float64) error
	DeleteParcel(ctx context.Context, id int64) error
}

// WateringController starts, inspects and cancels simulated runs.
type WateringController interface {
	Start(ctx context.Context, req irrigation.WateringRequest) (irrigation.Run, error)
	Status(parcelID int64) (irrigation.Run, bool)
	Cancel(parcelID int64) bool
	CancelSchedule(scheduleID int64) bool
}

type createParcelRequest struct {
	Name     string   `json:"name" binding:"required"`
	Humidity *float64 `json:"humidity"`
}

type humidityRequest struct {
	Humidity *float64 `json:"humidity" binding:"required"`
}

type wateringStatus struct {
	Watering bool            `json:"watering"`
	Run      *irrigation.Run `json:"run,omitempty"`
}

// ParcelHandler serves /api/parcels.
type ParcelHandler struct {
	store        ParcelStore
	waterer      WateringController
	randHumidity func() float64
	logger       *zap.Logger
}

// NewParcelHandler constructs the parcel handler.
func NewParcelHandler(store ParcelStore, waterer WateringController, logger *zap.Logger) *ParcelHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParcelHandler{
		store:   store,
		waterer: waterer,
		randHumidity: func() float64 {
			return math.Round(rand.Float64()*50*100) / 100
		},
		logger: logger,
	}
}

// List returns every parcel.
func (h *ParcelHandler) List(c *gin.Context) {
	parcels, err := h.store.ListParcels(c.Request.Context())
	if err != nil {
		h.logger.Error("failed listing parcels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list parcels"})
		return
	}
	if parcels == nil {
		parcels = []models.Parcel{}
	}
	c.JSON(http.StatusOK, parcels)
}

// Create adds a parcel owned by the caller. A missing humidity gets a random value below 50.
func (h *ParcelHandler) Create(c *gin.Context) {
	owner, ok := callerID(c)
	if !ok {
		return
	}

	var req createParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	humidity := h.randHumidity()
	if req.Humidity != nil {
		if !validHumidity(*req.Humidity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "humidity must be within 0-100"})
			return
		}
		humidity = *req.Humidity
	}

	parcel, err := h.store.CreateParcel(c.Request.Context(), models.Parcel{
		Name:     strings.TrimSpace(req.Name),
		UserID:   owner,
		Humidity: humidity,
	})
	if err != nil {
		h.logger.Error("failed creating parcel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create parcel"})
		return
	}
	c.JSON(http.StatusCreated, parcel)
}

// UpdateHumidity overwrites the humidity of a parcel.
func (h *ParcelHandler) UpdateHumidity(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req humidityRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validHumidity(*req.Humidity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "humidity must be within 0-100"})
		return
	}

	err := h.store.SetParcelHumidity(c.Request.Context(), id, *req.Humidity)
	if errors.Is(err, models.ErrParcelNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "parcel not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed updating humidity", zap.Int64("parcel_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update humidity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "humidity": *req.Humidity})
}

// Delete removes a parcel and cancels its in-flight run.
func (h *ParcelHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	err := h.store.DeleteParcel(c.Request.Context(), id)
	if errors.Is(err, models.ErrParcelNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "parcel not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed deleting parcel", zap.Int64("parcel_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete parcel"})
		return
	}

	cancelled := h.waterer.Cancel(id)
	c.JSON(http.StatusOK, gin.H{"deleted": id, "watering_cancelled": cancelled})
}

// Water starts a manual run sized by the humidity heuristic.
func (h *ParcelHandler) Water(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	parcel, err := h.store.GetParcel(c.Request.Context(), id)
	if errors.Is(err, models.ErrParcelNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "parcel not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed loading parcel", zap.Int64("parcel_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load parcel"})
		return
	}

	run, err := h.waterer.Start(c.Request.Context(), irrigation.WateringRequest{
		Parcel: parcel,
		Liters: irrigation.EstimateLiters(parcel.Humidity),
	})
	if errors.Is(err, irrigation.ErrAlreadyWatering) {
		c.JSON(http.StatusConflict, gin.H{"error": "parcel is already being watered"})
		return
	}
	if err != nil {
		h.logger.Error("failed starting watering", zap.Int64("parcel_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start watering"})
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// WateringStatus reports the in-flight run of a parcel, if any.
func (h *ParcelHandler) WateringStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	run, watering := h.waterer.Status(id)
	status := wateringStatus{Watering: watering}
	if watering {
		status.Run = &run
	}
	c.JSON(http.StatusOK, status)
}
