// Package email provides an email sending client.
//
// It uses Resend (resend-go) as the email provider and renders HTML bodies
// from templates embedded into the binary.
package email

import (
	"bytes"
	"context"
	"fmt"

	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// sender is the part of the Resend emails service the client uses.
type sender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Client wraps the Resend client and a logger.
type Client struct {
	emails sender
	from   string
	logger *zerolog.Logger
}

// NewClient creates an email Client using the Resend API key from config.
func NewClient(cfg *config.Config, logger *zerolog.Logger) *Client {
	return &Client{
		emails: resend.NewClient(cfg.Integration.ResendAPIKey).Emails,
		from:   cfg.Integration.EmailFrom,
		logger: logger,
	}
}

// Render executes the named template with data.
func Render(templateName Template, data map[string]string) (string, error) {
	if !templateName.Valid() {
		return "", fmt.Errorf("unknown email template %q", templateName)
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, string(templateName)+".html", data); err != nil {
		return "", errors.Wrapf(err, "failed to execute email template %s", templateName)
	}

	return body.String(), nil
}

// SendEmail renders msg.Template and sends it through Resend.
func (c *Client) SendEmail(ctx context.Context, msg Message) error {
	html, err := Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    html,
	}

	sent, err := c.emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug().
		Str("email_id", sent.Id).
		Str("template", string(msg.Template)).
		Msg("email accepted by provider")

	return nil
}
