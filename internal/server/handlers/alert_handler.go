package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/internal/service/alerts"
	"github.com/mamadbah2/agroirrigate/internal/service/notify"
)

// AlertRunner runs dry-parcel sweeps and manual alerts.
type AlertRunner interface {
	Check(ctx context.Context) (alerts.CheckResult, error)
	SendParcelAlert(ctx context.Context, parcelID int64, message string) (models.Parcel, error)
}

// ContactStore reads and updates user contact data.
type ContactStore interface {
	GetContact(ctx context.Context, userID int64) (models.Contact, error)
	UpdateEmail(ctx context.Context, userID int64, email string) error
}

type manualAlertRequest struct {
	Message string `json:"message"`
}

type emailRequest struct {
	Email string `json:"correo" binding:"required"`
}

// AlertHandler serves /api/alerts.
type AlertHandler struct {
	runner   AlertRunner
	contacts ContactStore
	logger   *zap.Logger
}

// NewAlertHandler constructs the alert handler.
func NewAlertHandler(runner AlertRunner, contacts ContactStore, logger *zap.Logger) *AlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHandler{runner: runner, contacts: contacts, logger: logger}
}

// Check runs the dry-parcel monitor now.
func (h *AlertHandler) Check(c *gin.Context) {
	result, err := h.runner.Check(c.Request.Context())
	if err != nil {
		h.logger.Error("dry parcel check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check parcels"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SendParcel sends a manual alert about one parcel to its owner.
func (h *AlertHandler) SendParcel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req manualAlertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	parcel, err := h.runner.SendParcelAlert(c.Request.Context(), id, req.Message)
	switch {
	case errors.Is(err, models.ErrParcelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "parcel not found"})
	case errors.Is(err, models.ErrUserNotFound), errors.Is(err, notify.ErrNoChannel):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "parcel owner has no reachable contact"})
	case err != nil:
		h.logger.Error("manual alert failed", zap.Int64("parcel_id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to deliver alert"})
	default:
		c.JSON(http.StatusOK, gin.H{"enviado": true, "parcela": parcel.Name, "usuario_id": parcel.UserID})
	}
}

// GetContact returns a user's contact data.
func (h *AlertHandler) GetContact(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	contact, err := h.contacts.GetContact(c.Request.Context(), id)
	if errors.Is(err, models.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed loading contact", zap.Int64("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, contact)
}

// UpdateEmail replaces a user's email address.
func (h *AlertHandler) UpdateEmail(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "correo is required"})
		return
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil || addr.Name != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email address"})
		return
	}

	err = h.contacts.UpdateEmail(c.Request.Context(), id, addr.Address)
	if errors.Is(err, models.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed updating email", zap.Int64("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update email"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "correo": addr.Address})
}
