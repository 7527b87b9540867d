package mail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/njprem/ems_auth_backend/internal/domain"
)

var ErrNoRecipient = errors.New("account has no email address")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// RecoveryMailer emails a password reset link built from the frontend base URL.
type RecoveryMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	baseURL  string
	send     sendFunc
}

func NewRecoveryMailer(host, port, username, password, from, frontendBaseURL string) *RecoveryMailer {
	return &RecoveryMailer{
		host:     strings.TrimSpace(host),
		port:     strings.TrimSpace(port),
		username: username,
		password: password,
		from:     strings.TrimSpace(from),
		baseURL:  strings.TrimRight(strings.TrimSpace(frontendBaseURL), "/"),
		send:     smtp.SendMail,
	}
}

func (m *RecoveryMailer) SendRecoveryMessage(ctx context.Context, account *domain.Account, token string) error {
	if m == nil {
		return errors.New("mailer not configured")
	}
	if m.host == "" || m.port == "" || m.from == "" {
		return errors.New("mailer missing configuration")
	}
	if account == nil || account.Email == nil || strings.TrimSpace(*account.Email) == "" {
		return ErrNoRecipient
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	to := strings.TrimSpace(*account.Email)
	message := m.compose(to, account.Username, ResetLink(m.baseURL, token))

	var auth smtp.Auth
	if m.username != "" || m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := net.JoinHostPort(m.host, m.port)
	if err := m.send(addr, auth, m.from, []string{to}, message); err != nil {
		return fmt.Errorf("send recovery mail: %w", err)
	}
	return nil
}

func (m *RecoveryMailer) compose(to, username, link string) []byte {
	body := fmt.Sprintf("Hello %s,\n\nUse the link below to reset your password:\n%s\n\nThe link can be used once and expires soon. If you did not request this, ignore this email.", username, link)

	message := strings.Builder{}
	message.WriteString(fmt.Sprintf("From: %s\r\n", m.from))
	message.WriteString(fmt.Sprintf("To: %s\r\n", to))
	message.WriteString("Subject: Reset your EMS password\r\n")
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	message.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
	message.WriteString(body)
	message.WriteString("\r\n")
	return []byte(message.String())
}

// ResetLink points the browser at the frontend reset page with token in the query.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// LogSender stands in for SMTP in development. It logs that a message would
// have been sent without printing the token.
type LogSender struct{}

func (LogSender) SendRecoveryMessage(ctx context.Context, account *domain.Account, token string) error {
	if account == nil {
		return errors.New("no account")
	}
	log.Printf("password reset: SMTP not configured, recovery message for account %d (%s) not sent", account.ID, account.Username)
	return nil
}
