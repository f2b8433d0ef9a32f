package mail

import (
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	gomail "github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"mailrag/internal/logger"
)

// Fetcher 基于IMAP的收件器
// 每次轮询建立一条新连接, 拉取后立即退出登录, 不维护长连接
type Fetcher struct {
	server   string // host:port, 走TLS
	username string
	password string
}

// NewFetcher 创建IMAP收件器
func NewFetcher(server, username, password string) *Fetcher {
	return &Fetcher{
		server:   server,
		username: username,
		password: password,
	}
}

// FetchUnseen 拉取收件箱中所有未读邮件
// 拉取正文的动作本身会把邮件标记为已读, 同一封信不会被重复处理
func (f *Fetcher) FetchUnseen(ctx context.Context) ([]Inbound, error) {
	c, err := client.DialTLS(f.server, nil)
	if err != nil {
		return nil, fmt.Errorf("连接IMAP服务器失败: %w", err)
	}
	defer c.Logout()

	if err := c.Login(f.username, f.password); err != nil {
		return nil, fmt.Errorf("IMAP登录失败: %w", err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("打开收件箱失败: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索未读邮件失败: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	inbounds := make([]Inbound, 0, len(ids))
	for msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body := msg.GetBody(section)
		if body == nil {
			continue
		}

		inbound, err := parseMessage(msg.Uid, body)
		if err != nil {
			// 单封信解析失败只记录, 不拖垮整次轮询
			logger.Error("解析邮件失败",
				zap.Uint32("uid", msg.Uid),
				zap.Error(err))
			continue
		}
		inbounds = append(inbounds, *inbound)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("拉取邮件失败: %w", err)
	}

	return inbounds, nil
}

// parseMessage 解析单封邮件的头部, 正文与附件
func parseMessage(uid uint32, raw io.Reader) (*Inbound, error) {
	mr, err := gomail.CreateReader(raw)
	if err != nil {
		return nil, fmt.Errorf("创建邮件读取器失败: %w", err)
	}

	inbound := &Inbound{UID: uid}

	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		inbound.From = addrs[0].Address
	}
	if subject, err := mr.Header.Subject(); err == nil {
		inbound.Subject = subject
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取邮件片段失败: %w", err)
		}

		switch header := part.Header.(type) {
		case *gomail.InlineHeader:
			// 只取第一个纯文本正文
			if inbound.Body != "" {
				continue
			}
			contentType, _, err := header.ContentType()
			if err != nil || contentType != "text/plain" {
				continue
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("读取正文失败: %w", err)
			}
			inbound.Body = string(data)

		case *gomail.AttachmentHeader:
			filename, err := header.Filename()
			if err != nil || filename == "" {
				continue
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("读取附件失败: %w", err)
			}
			inbound.Attachments = append(inbound.Attachments, Attachment{
				Filename: filename,
				Data:     data,
			})
		}
	}

	return inbound, nil
}
