package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"github.com/sjperalta/fintera-contracts/internal/config"
	"github.com/sjperalta/fintera-contracts/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

// EmailService sends transactional email through Resend
type EmailService struct {
	config       *config.Config
	resendClient *resend.Client
}

func NewEmailService(cfg *config.Config) *EmailService {
	client := resend.NewClient(cfg.ResendAPIKey)
	return &EmailService{
		config:       cfg,
		resendClient: client,
	}
}

// checkEmailPreconditions returns false without error when notifications are
// switched off, and an error when they are on but cannot be delivered.
func (s *EmailService) checkEmailPreconditions(to []string, operation string) (bool, error) {
	if !s.config.EnableEmailNotifications {
		logger.Debug("email notifications disabled", slog.String("operation", operation))
		return false, nil
	}
	if s.config.ResendAPIKey == "" {
		return false, errors.New("RESEND_API_KEY is not set")
	}
	if s.config.FromEmail == "" {
		return false, errors.New("FROM_EMAIL is not set")
	}
	if len(to) == 0 {
		return false, fmt.Errorf("no recipients for %s", operation)
	}
	return true, nil
}

// Send renders template name with data and delivers it to the recipients
func (s *EmailService) Send(ctx context.Context, to []string, subject, name string, data any) error {
	ok, err := s.checkEmailPreconditions(to, name)
	if !ok {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := s.renderTemplate(name, data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      to,
		Subject: subject,
		Html:    body,
	}
	if _, err := s.resendClient.Emails.Send(params); err != nil {
		logger.Error("failed to send email",
			slog.String("template", name),
			slog.Int("recipients", len(to)),
			slog.String("error", err.Error()))
		return err
	}

	logger.Info("email sent", slog.String("template", name), slog.String("subject", subject))
	return nil
}

func (s *EmailService) renderTemplate(name string, data any) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
