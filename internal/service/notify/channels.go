package notify

import (
	"context"
	"fmt"

	"github.com/mamadbah2/agroirrigate/internal/domain/models"
	"github.com/mamadbah2/agroirrigate/pkg/clients/sendgrid"
	"github.com/mamadbah2/agroirrigate/pkg/clients/twilio"
)

// EmailSender is satisfied by the SendGrid client.
type EmailSender interface {
	Send(ctx context.Context, email sendgrid.Email) error
}

// EmailChannel delivers notifications by email.
type EmailChannel struct {
	sender EmailSender
}

// NewEmailChannel wraps an email sender.
func NewEmailChannel(sender EmailSender) *EmailChannel { return &EmailChannel{sender: sender} }

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Reachable(to models.Contact) bool { return to.Email != "" }

func (c *EmailChannel) Send(ctx context.Context, to models.Contact, n models.Notification) error {
	return c.sender.Send(ctx, sendgrid.Email{
		To:      to.Email,
		ToName:  to.Name,
		Subject: n.Subject,
		Body:    fmt.Sprintf("Hola %s,\n\n%s\n\nAgroIrrigate", to.Name, n.Message),
	})
}

// SMSSender is satisfied by the Twilio client.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (*twilio.MessageResponse, error)
}

// SMSChannel delivers notifications by SMS.
type SMSChannel struct {
	sender SMSSender
}

// NewSMSChannel wraps an SMS sender.
func NewSMSChannel(sender SMSSender) *SMSChannel { return &SMSChannel{sender: sender} }

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Reachable(to models.Contact) bool { return to.Phone != "" }

func (c *SMSChannel) Send(ctx context.Context, to models.Contact, n models.Notification) error {
	_, err := c.sender.SendSMS(ctx, to.Phone, fmt.Sprintf("%s: %s", n.Subject, n.Message))
	return err
}

// TextSender is satisfied by the WhatsApp client.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

// WhatsAppChannel delivers notifications over WhatsApp to the contact phone.
type WhatsAppChannel struct {
	sender TextSender
}

// NewWhatsAppChannel wraps a WhatsApp sender.
func NewWhatsAppChannel(sender TextSender) *WhatsAppChannel { return &WhatsAppChannel{sender: sender} }

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

func (c *WhatsAppChannel) Reachable(to models.Contact) bool { return to.Phone != "" }

func (c *WhatsAppChannel) Send(ctx context.Context, to models.Contact, n models.Notification) error {
	return c.sender.SendText(ctx, to.Phone, fmt.Sprintf("*%s*\n%s", n.Subject, n.Message))
}
