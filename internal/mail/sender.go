package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// Sender 基于SMTP的回信器
type Sender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSender 创建SMTP回信器
// from 通常与登录账号一致
func NewSender(host string, port int, username, password, from string) *Sender {
	if from == "" {
		from = username
	}
	return &Sender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Reply 针对来信发送回复
// 主题统一加 Re: 前缀, attachments 为要随信附上的本地文件路径
func (s *Sender) Reply(ctx context.Context, to, subject, body string, attachments []string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("设置收件人失败: %w", err)
	}
	msg.Subject(fmt.Sprintf("Re: %s", subject))
	msg.SetBodyString(gomail.TypeTextPlain, body)

	for _, path := range attachments {
		msg.AttachFile(path)
	}

	c, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("创建SMTP客户端失败: %w", err)
	}

	if err := c.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("发送回信失败: %w", err)
	}
	return nil
}
