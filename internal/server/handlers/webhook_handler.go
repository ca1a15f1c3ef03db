package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	service "github.com/mamadbah2/agroirrigate/internal/service/whatsapp"
)

// WebhookHandler exposes the WhatsApp webhook that carries chat commands, plus operator messages.
type WebhookHandler struct {
	svc    service.MessagingService
	logger *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter.
func NewWebhookHandler(svc service.MessagingService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, logger: logger}
}

// Verify responds to Meta's webhook verification challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	resp, err := h.svc.VerifyWebhookToken(mode, token, challenge)
	if err != nil {
		h.logger.Warn("webhook verification failed", zap.Error(err))
		c.String(http.StatusForbidden, "verification failed")
		return
	}

	c.String(http.StatusOK, resp)
}

const whatsappObject = "whatsapp_business_account"

// Receive ingests webhook POST callbacks from Meta. Callbacks carrying only delivery
// receipts are acknowledged without reaching the command service.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if payload.Object != whatsappObject {
		h.logger.Warn("unexpected webhook object", zap.String("object", payload.Object))
		c.JSON(http.StatusNotFound, gin.H{"error": "unsupported object"})
		return
	}

	messages, receipts := 0, 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			receipts += len(change.Value.Statuses)
			for _, msg := range change.Value.Messages {
				messages++
				h.logger.Info("chat command received",
					zap.String("sender", msg.From),
					zap.String("message_id", msg.ID),
					zap.String("command", string(commandOf(msg))))
			}
		}
	}
	if messages == 0 {
		h.logger.Debug("webhook without messages acknowledged", zap.Int("receipts", receipts))
		c.Status(http.StatusOK)
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), payload); err != nil {
		h.logger.Error("failed processing chat commands", zap.Int("messages", messages), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process webhook"})
		return
	}

	c.Status(http.StatusOK)
}

func commandOf(msg models.InboundMessage) models.CommandType {
	switch {
	case msg.Text != nil:
		return models.ParseCommand(msg.Text.Body).Type
	case msg.Interactive != nil && msg.Interactive.ButtonReply != nil:
		return models.ParseCommand(msg.Interactive.ButtonReply.ID).Type
	case msg.Interactive != nil && msg.Interactive.ListReply != nil:
		return models.ParseCommand(msg.Interactive.ListReply.ID).Type
	default:
		return models.CommandUnknown
	}
}

// SendMessage lets an operator message a farmer directly.
func (h *WebhookHandler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid outbound payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.SendOutbound(c.Request.Context(), req); err != nil {
		h.logger.Error("failed sending outbound", zap.String("to", req.To), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send message"})
		return
	}

	h.logger.Info("operator message sent", zap.String("to", req.To))
	c.Status(http.StatusAccepted)
}
