package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Service sends transactional e-mails through SendGrid.
type Service struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

// NewService creates a SendGrid-backed mail service.
func NewService(apiKey, fromEmail, fromName string) *Service {
	return &Service{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// SendModerationResult notifies a submitter that their class listing was
// approved or rejected.
func (s *Service) SendModerationResult(ctx context.Context, to, classTitle string, approved bool, reason string) error {
	var subject, plain string
	if approved {
		subject = "Your CE class listing has been approved"
		plain = fmt.Sprintf(
			"Good news! Your listing %q has been approved and is now live on the platform.",
			classTitle,
		)
	} else {
		subject = "Your CE class listing was not approved"
		plain = fmt.Sprintf("Your listing %q was not approved.", classTitle)
		if reason != "" {
			plain += fmt.Sprintf("\n\nReason: %s", reason)
		}
		plain += "\n\nYou can edit and resubmit it from your dashboard."
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), plain, "")

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}

	return nil
}
