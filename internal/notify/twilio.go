package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/facewatch/facewatch/internal/config"
	"github.com/facewatch/facewatch/internal/database"
)

// twilioClient posts form-encoded requests to the Twilio REST API.
type twilioClient struct {
	cfg    config.TwilioConfig
	client *http.Client
}

func newTwilioClient(cfg config.TwilioConfig) *twilioClient {
	return &twilioClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// post submits one API call, e.g. resource "Messages.json" or "Calls.json".
func (t *twilioClient) post(ctx context.Context, resource string, form url.Values) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/%s",
		strings.TrimSuffix(t.cfg.BaseURL, "/"), t.cfg.AccountSID, resource)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// SMSSender delivers alerts as text messages.
type SMSSender struct {
	api  *twilioClient
	from string
}

func NewSMSSender(cfg config.TwilioConfig) *SMSSender {
	return &SMSSender{api: newTwilioClient(cfg), from: cfg.From}
}

func (s *SMSSender) Channel() database.Channel {
	return database.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, rec database.Recipient, alert Alert) error {
	if rec.PhoneNumber == "" {
		return fmt.Errorf("recipient %d has no phone number", rec.ID)
	}
	form := url.Values{
		"To":   {rec.PhoneNumber},
		"From": {s.from},
		"Body": {alert.Message},
	}
	if err := s.api.post(ctx, "Messages.json", form); err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", rec.PhoneNumber, err)
	}
	return nil
}

// VoiceSender delivers alerts as automated voice calls.
type VoiceSender struct {
	api  *twilioClient
	from string
}

func NewVoiceSender(cfg config.TwilioConfig) *VoiceSender {
	return &VoiceSender{api: newTwilioClient(cfg), from: cfg.From}
}

func (s *VoiceSender) Channel() database.Channel {
	return database.ChannelVoice
}

func (s *VoiceSender) Send(ctx context.Context, rec database.Recipient, alert Alert) error {
	if rec.PhoneNumber == "" {
		return fmt.Errorf("recipient %d has no phone number", rec.ID)
	}
	twiml := fmt.Sprintf("<Response><Say>%s</Say></Response>", escapeXML(alert.Message))
	form := url.Values{
		"To":    {rec.PhoneNumber},
		"From":  {s.from},
		"Twiml": {twiml},
	}
	if err := s.api.post(ctx, "Calls.json", form); err != nil {
		return fmt.Errorf("failed to place call to %s: %w", rec.PhoneNumber, err)
	}
	return nil
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlReplacer.Replace(s)
}
