package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/KhalilA93/TImesheetTracker/config"
)

// sesAPI SES 客户端中用到的方法子集
type sesAPI interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

type sesSender struct {
	client      sesAPI
	from        string
	frontendURL string
}

// NewSESSender 基于 AWS SES 发送邮件，凭证按默认链加载
func NewSESSender(ctx context.Context, cfg *config.MailConfig, frontendURL string) (Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
	if err != nil {
		return nil, fmt.Errorf("加载 AWS 配置失败: %w", err)
	}
	return &sesSender{
		client:      ses.NewFromConfig(awsCfg),
		from:        cfg.From,
		frontendURL: frontendURL,
	}, nil
}

func (s *sesSender) SendPasswordReset(ctx context.Context, msg PasswordResetMessage) error {
	html, text, err := renderReset(msg, s.frontendURL)
	if err != nil {
		return err
	}

	raw, err := buildRawMessage(s.from, msg.To, resetSubject, text, html)
	if err != nil {
		return err
	}

	out, err := s.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(s.from),
		Destinations: []string{msg.To},
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		return fmt.Errorf("SES 发送失败: %w", err)
	}
	if out == nil || out.MessageId == nil {
		return fmt.Errorf("SES 未返回 MessageId")
	}
	return nil
}

// buildRawMessage 组装 multipart/alternative 原始邮件
func buildRawMessage(from, to, subject, text, html string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", text},
		{"text/html; charset=UTF-8", html},
	} {
		w, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("创建邮件分段失败: %w", err)
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	var raw bytes.Buffer
	fmt.Fprintf(&raw, "From: %s\r\n", from)
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", subject)
	raw.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&raw, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())
	raw.Write(body.Bytes())
	return raw.Bytes(), nil
}
