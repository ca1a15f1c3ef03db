package sendgrid

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/agroirrigate/internal/config"
)

// Client sends transactional email through the SendGrid v3 mail API.
type Client struct {
	httpClient *resty.Client
	fromEmail  string
	fromName   string
}

// NewClient builds a SendGrid client using the API key from cfg.
func NewClient(cfg config.SendGridConfig) *Client {
	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &Client{httpClient: restyClient, fromEmail: cfg.FromEmail, fromName: cfg.FromName}
}

// Email is a plain text message to a single recipient.
type Email struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type apiError struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

// Send delivers the email. SendGrid answers 202 when the message is accepted.
func (c *Client) Send(ctx context.Context, email Email) error {
	payload := mailRequest{
		Personalizations: []personalization{{To: []address{{Email: email.To, Name: email.ToName}}}},
		From:             address{Email: c.fromEmail, Name: c.fromName},
		Subject:          email.Subject,
		Content:          []content{{Type: "text/plain", Value: email.Body}},
	}

	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetError(apiErr).
		Post("/v3/mail/send")
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		messages := make([]string, 0, len(apiErr.Errors))
		for _, e := range apiErr.Errors {
			messages = append(messages, e.Message)
		}
		return fmt.Errorf("sendgrid api error: status=%d, message=%s", resp.StatusCode(), strings.Join(messages, "; "))
	}

	return nil
}
