// Package mail sends account mail through the Resend API, or logs it when no
// API key is configured.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"weighttrack/internal/domain"
)

const (
	// ResendEndpoint is the Resend send-email API.
	ResendEndpoint = "https://api.resend.com/emails"
	requestTimeout = 10 * time.Second
	resetSubject   = "Reset your password"
)

var resetBody = template.Must(template.New("reset").Parse(`<p>Hello,</p>
<p>You asked to reset your password.</p>
<p><a href="{{.}}">Choose a new password</a></p>
<p>This link expires in 1 hour. If you did not ask for it, ignore this email.</p>
`))

var (
	_ domain.Mailer = (*ResendMailer)(nil)
	_ domain.Mailer = (*LogMailer)(nil)
)

// ResendMailer delivers mail via the Resend HTTP API.
type ResendMailer struct {
	apiKey string
	from   string
	client *http.Client
	log    *zap.SugaredLogger
}

// NewResendMailer creates a mailer sending as from.
func NewResendMailer(apiKey, from string, log *zap.SugaredLogger) *ResendMailer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ResendMailer{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: requestTimeout},
		log:    log,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// SendPasswordReset mails link to the given address.
func (m *ResendMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	var html bytes.Buffer
	if err := resetBody.Execute(&html, link); err != nil {
		return fmt.Errorf("render reset mail: %w", err)
	}

	body, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: resetSubject,
		HTML:    html.String(),
	})
	if err != nil {
		return fmt.Errorf("encode reset mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ResendEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send reset mail: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	m.log.Debugw("reset mail accepted", "status", resp.StatusCode)
	return nil
}

// LogMailer writes mail to the log instead of sending it. It is meant for
// development setups without a mail provider.
type LogMailer struct {
	log *zap.SugaredLogger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(log *zap.SugaredLogger) *LogMailer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LogMailer{log: log}
}

// SendPasswordReset logs the reset link.
func (m *LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.log.Infow("password reset mail", "to", to, "link", link)
	return nil
}
