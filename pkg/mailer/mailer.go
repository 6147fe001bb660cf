package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v3"
	"github.com/sirupsen/logrus"
)

// Sender delivers transactional email
type Sender interface {
	SendOTP(ctx context.Context, toEmail, code string) error
}

var otpTemplate = template.Must(template.New("otp").Parse(`<p>Your Riseup-Connect verification code is</p>
<h2 style="letter-spacing:4px">{{.Code}}</h2>
<p>It expires in {{.Minutes}} minutes. If you did not request it, ignore this email.</p>`))

type otpData struct {
	Code    string
	Minutes int
}

// ResendSender sends through the Resend API
type ResendSender struct {
	client  *resend.Client
	from    string
	minutes int
}

func NewResendSender(apiKey, fromEmail string, validMinutes int) *ResendSender {
	return &ResendSender{
		client:  resend.NewClient(apiKey),
		from:    fmt.Sprintf("Riseup Connect <%s>", fromEmail),
		minutes: validMinutes,
	}
}

func (s *ResendSender) SendOTP(ctx context.Context, toEmail, code string) error {
	var body bytes.Buffer
	if err := otpTemplate.Execute(&body, otpData{Code: code, Minutes: s.minutes}); err != nil {
		return fmt.Errorf("failed to render otp email: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Your verification code",
		Html:    body.String(),
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send otp email: %w", err)
	}
	return nil
}

// LogSender writes codes to the log. Used when no API key is configured.
type LogSender struct {
	log logrus.FieldLogger
}

func NewLogSender(log logrus.FieldLogger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendOTP(_ context.Context, toEmail, code string) error {
	s.log.WithFields(logrus.Fields{"to": toEmail, "code": code}).Info("otp email (log only)")
	return nil
}

// New picks the Resend sender when apiKey is set
func New(apiKey, fromEmail string, validMinutes int, log logrus.FieldLogger) Sender {
	if apiKey == "" {
		log.Warn("RESEND_API_KEY is empty, emails are only logged")
		return NewLogSender(log)
	}
	return NewResendSender(apiKey, fromEmail, validMinutes)
}
