package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/healthvault/auth-service/internal/core/ports"
)

const (
	// EmailJSEndpoint is the EmailJS REST send endpoint.
	EmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

	dateLayout = "January 2, 2006 at 03:04 PM"
)

// EmailJSConfig holds the EmailJS account and branding settings.
type EmailJSConfig struct {
	Endpoint     string
	ServiceID    string
	TemplateID   string
	PublicKey    string
	PrivateKey   string
	AppName      string
	AppURL       string
	SupportEmail string
	CodeTTL      time.Duration
}

// EmailJS sends passcode emails through the EmailJS REST API. It makes a
// single attempt per call; wrap it with WithRetry for retries.
type EmailJS struct {
	cfg        EmailJSConfig
	httpClient *http.Client
	now        func() time.Time
}

var _ ports.Notifier = (*EmailJS)(nil)

// NewEmailJS creates a client. httpClient may be nil.
func NewEmailJS(cfg EmailJSConfig, httpClient *http.Client) *EmailJS {
	if cfg.Endpoint == "" {
		cfg.Endpoint = EmailJSEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &EmailJS{cfg: cfg, httpClient: httpClient, now: time.Now}
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send posts one email. Any non-200 response is an error.
func (c *EmailJS) Send(ctx context.Context, n ports.Notification) error {
	if c.cfg.ServiceID == "" || c.cfg.TemplateID == "" || c.cfg.PublicKey == "" {
		return fmt.Errorf("emailjs: incomplete configuration")
	}

	body, err := json.Marshal(emailJSRequest{
		ServiceID:      c.cfg.ServiceID,
		TemplateID:     c.cfg.TemplateID,
		UserID:         c.cfg.PublicKey,
		AccessToken:    c.cfg.PrivateKey,
		TemplateParams: c.templateParams(n),
	})
	if err != nil {
		return fmt.Errorf("encode emailjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("emailjs status %d: %s", resp.StatusCode, bytes.TrimSpace(text))
	}
	return nil
}

func (c *EmailJS) templateParams(n ports.Notification) map[string]string {
	content := ContentFor(n.Purpose, c.cfg.CodeTTL)
	return map[string]string{
		"to_email":         n.Email,
		"to_name":          recipientName(n.Email),
		"subject":          content.Subject,
		"title":            content.Title,
		"message":          content.Message,
		"otp_code":         n.Code,
		"footer_message":   content.Footer,
		"current_date":     c.now().UTC().Format(dateLayout),
		"app_name":         c.cfg.AppName,
		"app_url":          c.cfg.AppURL,
		"support_email":    c.cfg.SupportEmail,
		"background_color": content.BackgroundColor,
	}
}
