package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailrag/internal/excel"
	"mailrag/internal/logger"
	"mailrag/internal/metrics"
	"mailrag/internal/rag"
)

// MessageSource 收件来源
type MessageSource interface {
	FetchUnseen(ctx context.Context) ([]Inbound, error)
}

// ReplySender 回信出口
type ReplySender interface {
	Reply(ctx context.Context, to, subject, body string, attachments []string) error
}

// Answerer 问答引擎接口
type Answerer interface {
	Answer(ctx context.Context, question string) (*rag.Response, error)
}

// AttachmentProcessor 附件批量处理接口
type AttachmentProcessor interface {
	ProcessAttachments(ctx context.Context, paths []string) *excel.BatchReport
}

// Runner 邮件代理主循环
// 轮询收件箱, 对正文提问单条问答, 对Excel附件逐行批量问答, 渲染摘要后回信
type Runner struct {
	source      MessageSource
	sender      ReplySender
	answerer    Answerer
	attachments AttachmentProcessor

	attachmentsDir string
	pollInterval   time.Duration
}

// NewRunner 创建邮件代理
func NewRunner(source MessageSource, sender ReplySender, answerer Answerer, attachments AttachmentProcessor, attachmentsDir string, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Runner{
		source:         source,
		sender:         sender,
		answerer:       answerer,
		attachments:    attachments,
		attachmentsDir: attachmentsDir,
		pollInterval:   pollInterval,
	}
}

// Run 启动轮询直到上下文取消
// 启动后立即轮询一次, 之后按固定间隔执行
func (r *Runner) Run(ctx context.Context) error {
	logger.Info("邮件代理启动", zap.Duration("poll_interval", r.pollInterval))

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("邮件代理停止")
			return nil
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

// pollOnce 执行一次完整轮询
// 拉取失败只记录本次, 下个周期重新连接重试
func (r *Runner) pollOnce(ctx context.Context) {
	inbounds, err := r.source.FetchUnseen(ctx)
	if err != nil {
		metrics.MailPollsTotal.WithLabelValues("error").Inc()
		logger.Error("拉取未读邮件失败", zap.Error(err))
		return
	}
	metrics.MailPollsTotal.WithLabelValues("ok").Inc()

	for _, msg := range inbounds {
		r.processMessage(ctx, msg)
	}
}

// processMessage 处理一封来信
// 任一硬故障(问答失败/渲染失败)都保持沉默, 宁可不回也不回一封残缺的信
func (r *Runner) processMessage(ctx context.Context, msg Inbound) {
	if msg.From == "" {
		logger.Warn("来信缺少发件人, 跳过", zap.Uint32("uid", msg.UID))
		return
	}

	logger.Info("处理来信",
		zap.Uint32("uid", msg.UID),
		zap.String("from", msg.From),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))

	// 正文为空时不调用问答引擎, 模板会给出对应提示
	bodyResponse := ""
	if strings.TrimSpace(msg.Body) != "" {
		resp, err := r.answerer.Answer(ctx, msg.Body)
		if err != nil {
			logger.Error("正文问答失败, 不回信",
				zap.Uint32("uid", msg.UID),
				zap.Error(err))
			return
		}
		bodyResponse = resp.Text
	}

	paths, err := r.saveAttachments(msg)
	if err != nil {
		logger.Error("保存附件失败, 不回信",
			zap.Uint32("uid", msg.UID),
			zap.Error(err))
		return
	}

	report := r.attachments.ProcessAttachments(ctx, paths)

	body, err := RenderReply(ReplyData{
		BodyResponse:      bodyResponse,
		NumAttachments:    len(msg.Attachments),
		NumProcessedFiles: report.Processed,
		NumFailedFiles:    report.Failed,
		NumSkippedFiles:   report.Skipped,
		DetailedSummary:   report.Summary(),
	})
	if err != nil {
		logger.Error("渲染回信失败, 不回信",
			zap.Uint32("uid", msg.UID),
			zap.Error(err))
		return
	}

	if err := r.sender.Reply(ctx, msg.From, msg.Subject, body, report.Outputs); err != nil {
		logger.Error("发送回信失败",
			zap.Uint32("uid", msg.UID),
			zap.Error(err))
		return
	}

	metrics.MailRepliesTotal.Inc()
	logger.Info("回信已发送",
		zap.Uint32("uid", msg.UID),
		zap.String("to", msg.From))
}

// saveAttachments 把附件落盘到按UID隔离的子目录
// 保留原始文件名, 处理结果的文件名由此派生
func (r *Runner) saveAttachments(msg Inbound) ([]string, error) {
	if len(msg.Attachments) == 0 {
		return nil, nil
	}

	dir := filepath.Join(r.attachmentsDir, strconv.FormatUint(uint64(msg.UID), 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建附件目录失败: %w", err)
	}

	paths := make([]string, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		path := filepath.Join(dir, filepath.Base(att.Filename))
		if err := os.WriteFile(path, att.Data, 0o644); err != nil {
			return nil, fmt.Errorf("写入附件 %s 失败: %w", att.Filename, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
