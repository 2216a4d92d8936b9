package twilio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chatgpt-whatsapp-bot/pkg/domain"
	"chatgpt-whatsapp-bot/pkg/logger"
)

const defaultBaseURL = "https://api.twilio.com"

type client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	hc         *http.Client
}

func NewClient(accountSID, authToken, fromNumber string) (*client, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio credentials are empty")
	}
	if fromNumber == "" {
		return nil, fmt.Errorf("twilio sender number is empty")
	}
	return &client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    defaultBaseURL,
		hc:         &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// ParseInbound extracts the known fields of a webhook form payload. A missing
// body yields empty content, not an error.
func (c *client) ParseInbound(values url.Values) domain.InboundMessage {
	numMedia, _ := strconv.Atoi(values.Get("NumMedia"))
	return domain.InboundMessage{
		From:             values.Get("From"),
		ProfileName:      values.Get("ProfileName"),
		Body:             values.Get("Body"),
		NumMedia:         numMedia,
		MediaURL:         values.Get("MediaUrl0"),
		MediaContentType: values.Get("MediaContentType0"),
	}
}

// SendText delivers text to the destination number and returns the text that
// was actually delivered. On a provider-side failure it falls back to sending
// onFailure when provided; if that fails too, or no fallback is given, it
// fails with a DeliveryError.
func (c *client) SendText(ctx context.Context, text, to, onFailure string) (string, error) {
	err := c.createMessage(ctx, url.Values{
		"From": {whatsAppAddr(c.fromNumber)},
		"To":   {whatsAppAddr(to)},
		"Body": {text},
	})
	if err == nil {
		return text, nil
	}

	if onFailure == "" {
		return "", &domain.DeliveryError{Err: err}
	}

	slog.Error("sending message, falling back", "to", to, logger.Err(err))

	fbErr := c.createMessage(ctx, url.Values{
		"From": {whatsAppAddr(c.fromNumber)},
		"To":   {whatsAppAddr(to)},
		"Body": {onFailure},
	})
	if fbErr != nil {
		return "", &domain.DeliveryError{Err: fbErr}
	}
	return onFailure, nil
}

// SendMedia delivers a media attachment by its public URL.
func (c *client) SendMedia(ctx context.Context, mediaURL, to string) error {
	err := c.createMessage(ctx, url.Values{
		"From":     {whatsAppAddr(c.fromNumber)},
		"To":       {whatsAppAddr(to)},
		"MediaUrl": {mediaURL},
	})
	if err != nil {
		return &domain.DeliveryError{Err: err}
	}
	return nil
}

func (c *client) createMessage(ctx context.Context, form url.Values) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(body))
	}
	return nil
}

// DownloadMedia fetches inbound media from the provider. Media URLs require
// the same basic auth as the REST API.
func (c *client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}

func whatsAppAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
