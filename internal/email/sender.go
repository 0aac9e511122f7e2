// Package email renders and delivers transactional marketplace emails.
// Delivery goes through Brevo's HTTP API when an API key is configured,
// falling back to plain SMTP otherwise.
package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadmarket_backend/platform/config"
)

// Attachment represents a file attachment for an email.
type Attachment struct {
	Content  []byte
	FileName string
	MIMEType string
}

type Sender interface {
	SendLeadApprovedEmail(ctx context.Context, toEmail, product string, price int) error
	SendLeadRejectedEmail(ctx context.Context, toEmail, product, reason string) error
	SendLeadSoldEmail(ctx context.Context, toEmail, product string) error
	SendPaymentVerifiedEmail(ctx context.Context, toEmail, product string) error
	SendPaymentRejectedEmail(ctx context.Context, toEmail, product, reason string) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

type NoopSender struct{}

func (NoopSender) SendLeadApprovedEmail(ctx context.Context, toEmail, product string, price int) error {
	return nil
}

func (NoopSender) SendLeadRejectedEmail(ctx context.Context, toEmail, product, reason string) error {
	return nil
}

func (NoopSender) SendLeadSoldEmail(ctx context.Context, toEmail, product string) error {
	return nil
}

func (NoopSender) SendPaymentVerifiedEmail(ctx context.Context, toEmail, product string) error {
	return nil
}

func (NoopSender) SendPaymentRejectedEmail(ctx context.Context, toEmail, product, reason string) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

// NewSender selects the delivery backend from configuration. Disabled email
// yields a NoopSender so callers never need to branch.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetBrevoAPIKey() != "" {
		return &BrevoSender{
			apiKey:    cfg.GetBrevoAPIKey(),
			fromName:  cfg.GetEmailFromName(),
			fromEmail: cfg.GetEmailFromAddress(),
			client:    &http.Client{Timeout: 10 * time.Second},
		}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(), cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(), cfg.GetEmailFromName(),
	), nil
}

type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	client    *http.Client
}

type brevoAttachment struct {
	Content string `json:"content"` // base64-encoded file content
	Name    string `json:"name"`
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

func (b *BrevoSender) SendLeadApprovedEmail(ctx context.Context, toEmail, product string, price int) error {
	content, err := renderLeadApproved(product, price)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectLeadApproved, content)
}

func (b *BrevoSender) SendLeadRejectedEmail(ctx context.Context, toEmail, product, reason string) error {
	content, err := renderLeadRejected(product, reason)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectLeadRejected, content)
}

func (b *BrevoSender) SendLeadSoldEmail(ctx context.Context, toEmail, product string) error {
	content, err := renderLeadSold(product)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectLeadSold, content)
}

func (b *BrevoSender) SendPaymentVerifiedEmail(ctx context.Context, toEmail, product string) error {
	content, err := renderPaymentVerified(product)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectPaymentVerified, content)
}

func (b *BrevoSender) SendPaymentRejectedEmail(ctx context.Context, toEmail, product, reason string) error {
	content, err := renderPaymentRejected(product, reason)
	if err != nil {
		return err
	}
	return b.send(ctx, toEmail, subjectPaymentRejected, content)
}

func (b *BrevoSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return b.send(ctx, toEmail, subject, htmlContent)
}

func (b *BrevoSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	payload := brevoEmailRequest{
		Subject:     subject,
		HTMLContent: htmlContent,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: toEmail}}

	for _, att := range attachments {
		payload.Attachment = append(payload.Attachment, brevoAttachment{
			Content: base64.StdEncoding.EncodeToString(att.Content),
			Name:    att.FileName,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.brevo.com/v3/smtp/email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	return nil
}
