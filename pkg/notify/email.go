package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/cjnaz/routermonitor/pkg/config"
)

// EmailNotifier sends alerts through a plain SMTP server.
type EmailNotifier struct {
	cfg config.SMTPConfig
}

func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

func (n *EmailNotifier) Notify(_ context.Context, subject, body string) error {
	addr := net.JoinHostPort(n.cfg.Server, strconv.Itoa(n.cfg.Port))

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Server)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		n.cfg.From, strings.Join(n.cfg.To, ", "), subject, body)

	if err := smtp.SendMail(addr, auth, n.cfg.From, n.cfg.To, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email through %s: %w", addr, err)
	}
	return nil
}
