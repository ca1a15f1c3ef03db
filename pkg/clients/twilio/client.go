package twilio

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/agroirrigate/internal/config"
)

// Client sends SMS through the Twilio Messages API.
type Client struct {
	httpClient *resty.Client
	accountSID string
	from       string
}

// NewClient builds a Twilio client authenticated with the account SID and token.
func NewClient(cfg config.TwilioConfig) *Client {
	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetTimeout(15 * time.Second)

	return &Client{httpClient: restyClient, accountSID: cfg.AccountSID, from: cfg.FromNumber}
}

// MessageResponse is the subset of the created message resource we keep.
type MessageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// SendSMS sends body to an E.164 phone number.
func (c *Client) SendSMS(ctx context.Context, to, body string) (*MessageResponse, error) {
	result := new(MessageResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": c.from,
			"Body": body,
		}).
		SetResult(result).
		SetError(apiErr).
		Post(fmt.Sprintf("/2010-04-01/Accounts/%s/Messages.json", c.accountSID))
	if err != nil {
		return nil, fmt.Errorf("send sms: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, fmt.Errorf("twilio api error: status=%d, code=%d, message=%s", resp.StatusCode(), apiErr.Code, apiErr.Message)
	}

	return result, nil
}
