// Package email sends transactional mail through AWS SES.
package email

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Sender is what auth and contact handlers depend on
type Sender interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, resetToken string) error
	SendContactMessage(ctx context.Context, msg ContactMessage) error
}

// ContactMessage is a contact-form submission forwarded to support
type ContactMessage struct {
	Name    string
	Email   string
	Subject string
	Message string
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailService handles sending emails via AWS SES
type EmailService struct {
	client       sesAPI
	fromEmail    string
	fromName     string
	baseURL      string
	supportInbox string
}

var _ Sender = (*EmailService)(nil)

// NewEmailService creates a new email service using AWS SES. baseURL is
// the web app origin used in links; supportInbox receives contact forms.
func NewEmailService(region, fromEmail, fromName, baseURL, supportInbox string) (*EmailService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &EmailService{
		client:       ses.NewFromConfig(cfg),
		fromEmail:    fromEmail,
		fromName:     fromName,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		supportInbox: supportInbox,
	}, nil
}

// SendPasswordResetEmail sends a password reset email with the reset token
func (e *EmailService) SendPasswordResetEmail(ctx context.Context, toEmail, resetToken string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", e.baseURL, resetToken)

	subject := "Reset your Paddock password"
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #15151e;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1>Reset your password</h1>
		<p>Someone asked to reset the password on your Paddock account.</p>
		<p>The link below works for one hour.</p>
		<a href="%s" style="display: inline-block; padding: 12px 24px; background-color: #e10600; color: white; text-decoration: none; border-radius: 6px;">Reset password</a>
		<p style="word-break: break-all; color: #666;">%s</p>
		<p>If this wasn't you, ignore this email. Your password stays the same.</p>
	</div>
</body>
</html>`, resetURL, resetURL)

	textBody := fmt.Sprintf(`Reset your Paddock password

Someone asked to reset the password on your Paddock account.
The link below works for one hour.

%s

If this wasn't you, ignore this email. Your password stays the same.
`, resetURL)

	if err := e.send(ctx, []string{toEmail}, nil, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

// SendContactMessage forwards a contact form to the support inbox with
// Reply-To set to the sender
func (e *EmailService) SendContactMessage(ctx context.Context, msg ContactMessage) error {
	if e.supportInbox == "" {
		return fmt.Errorf("support inbox not configured")
	}

	subject := fmt.Sprintf("[Contact] %s", msg.Subject)
	textBody := fmt.Sprintf("From: %s <%s>\n\n%s\n", msg.Name, msg.Email, msg.Message)
	htmlBody := fmt.Sprintf("<p><strong>From:</strong> %s &lt;%s&gt;</p><pre style=\"white-space: pre-wrap;\">%s</pre>",
		html.EscapeString(msg.Name), html.EscapeString(msg.Email), html.EscapeString(msg.Message))

	if err := e.send(ctx, []string{e.supportInbox}, []string{msg.Email}, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to forward contact message: %w", err)
	}
	return nil
}

func (e *EmailService) send(ctx context.Context, to, replyTo []string, subject, htmlBody, textBody string) error {
	from := e.fromEmail
	if e.fromName != "" {
		from = fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)
	}

	input := &ses.SendEmailInput{
		Source:           aws.String(from),
		Destination:      &types.Destination{ToAddresses: to},
		ReplyToAddresses: replyTo,
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	_, err := e.client.SendEmail(ctx, input)
	return err
}
