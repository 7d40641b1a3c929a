package mail

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/KhalilA93/TImesheetTracker/config"
)

type smtpSender struct {
	dialer      *gomail.Dialer
	from        string
	frontendURL string
}

// NewSMTPSender 基于 SMTP 发送邮件
func NewSMTPSender(cfg *config.MailConfig, frontendURL string) Sender {
	return &smtpSender{
		dialer:      gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		from:        cfg.From,
		frontendURL: frontendURL,
	}
}

func (s *smtpSender) SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error {
	if msg.To == s.from {
		return fmt.Errorf("收件地址无效: %s", msg.To)
	}

	html, text, err := renderReset(msg, s.frontendURL)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", resetSubject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", html)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("SMTP 发送失败: %w", err)
	}
	return nil
}
