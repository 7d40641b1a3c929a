package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"

	"github.com/KhalilA93/TImesheetTracker/config"
)

const resetSubject = "Password Reset Request - TimeSheet Tracker"

// Sender 邮件发送接口
type Sender interface {
	SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error
}

// PasswordResetMessage 密码重置邮件内容
type PasswordResetMessage struct {
	To        string
	Name      string
	Token     string
	ExpiresIn time.Duration
}

// NewSender 根据配置选择发送驱动
func NewSender(ctx context.Context, cfg *config.MailConfig, frontendURL string, logger *zap.Logger) (Sender, error) {
	switch cfg.Driver {
	case "smtp":
		return NewSMTPSender(cfg, frontendURL), nil
	case "ses":
		return NewSESSender(ctx, cfg, frontendURL)
	case "log", "":
		return NewLogSender(frontendURL, logger), nil
	default:
		return nil, fmt.Errorf("不支持的邮件驱动: %s", cfg.Driver)
	}
}

// ResetURL 拼接前端重置密码页面地址
func ResetURL(frontendURL, token string) string {
	return fmt.Sprintf("%s/reset-password/%s", frontendURL, token)
}

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Password Reset Request</h2>
  <p>Hello {{.Name}},</p>
  <p>We received a request to reset the password for your TimeSheet Tracker account.</p>
  <p><a href="{{.URL}}" style="background:#3174ad;color:#fff;padding:10px 20px;text-decoration:none;border-radius:4px;">Reset Password</a></p>
  <p>This link will expire in {{.Minutes}} minutes. If you did not request a reset, you can ignore this email.</p>
</body>
</html>`))

// renderReset 渲染 HTML 与纯文本两种正文
func renderReset(msg PasswordResetMessage, frontendURL string) (html, text string, err error) {
	url := ResetURL(frontendURL, msg.Token)
	minutes := int(msg.ExpiresIn.Minutes())
	if minutes <= 0 {
		minutes = 60
	}
	name := msg.Name
	if name == "" {
		name = "there"
	}

	var buf bytes.Buffer
	if err := resetTemplate.Execute(&buf, map[string]interface{}{
		"Name":    name,
		"URL":     url,
		"Minutes": minutes,
	}); err != nil {
		return "", "", fmt.Errorf("渲染邮件模板失败: %w", err)
	}

	text = fmt.Sprintf("Hello %s,\n\nReset your TimeSheet Tracker password here: %s\n\nThis link will expire in %d minutes.\n",
		name, url, minutes)
	return buf.String(), text, nil
}

// ── 日志驱动（开发环境） ──

type logSender struct {
	frontendURL string
	logger      *zap.Logger
}

// NewLogSender 仅将重置链接写入日志，不真正发信
func NewLogSender(frontendURL string, logger *zap.Logger) Sender {
	return &logSender{frontendURL: frontendURL, logger: logger}
}

func (s *logSender) SendPasswordReset(_ context.Context, msg PasswordResetMessage) error {
	s.logger.Info("密码重置邮件（日志驱动）",
		zap.String("to", msg.To),
		zap.String("url", ResetURL(s.frontendURL, msg.Token)),
	)
	return nil
}
