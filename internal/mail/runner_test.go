package mail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mailrag/internal/excel"
	"mailrag/internal/logger"
	"mailrag/internal/rag"
)

type fakeSource struct {
	msgs    []Inbound
	err     error
	fetches int
}

func (f *fakeSource) FetchUnseen(ctx context.Context) ([]Inbound, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.msgs, nil
}

type sentReply struct {
	to          string
	subject     string
	body        string
	attachments []string
}

type fakeSender struct {
	replies []sentReply
	err     error
}

func (f *fakeSender) Reply(ctx context.Context, to, subject, body string, attachments []string) error {
	if f.err != nil {
		return f.err
	}
	f.replies = append(f.replies, sentReply{to: to, subject: subject, body: body, attachments: attachments})
	return nil
}

type fakeEngine struct {
	resp      *rag.Response
	err       error
	questions []string
}

func (f *fakeEngine) Answer(ctx context.Context, question string) (*rag.Response, error) {
	f.questions = append(f.questions, question)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &rag.Response{Text: "默认回答"}, nil
}

type fakeBatch struct {
	report   *excel.BatchReport
	gotPaths []string
}

func (f *fakeBatch) ProcessAttachments(ctx context.Context, paths []string) *excel.BatchReport {
	f.gotPaths = paths
	if f.report != nil {
		return f.report
	}
	return &excel.BatchReport{}
}

func newTestRunner(t *testing.T, source MessageSource, sender ReplySender, engine Answerer, batch AttachmentProcessor) *Runner {
	t.Helper()
	return NewRunner(source, sender, engine, batch, t.TempDir(), time.Minute)
}

func TestRunner_ProcessMessage_FullFlow(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	engine := &fakeEngine{resp: &rag.Response{Text: "SLA代表服务等级协议。"}}
	sender := &fakeSender{}
	batch := &fakeBatch{report: &excel.BatchReport{
		Outcomes:  []string{"File 'questions.xlsx' processed successfully: Processed 2 questions successfully"},
		Outputs:   []string{"/tmp/out/questions_answered.xlsx"},
		Processed: 1,
	}}
	attachmentsDir := t.TempDir()
	r := NewRunner(&fakeSource{}, sender, engine, batch, attachmentsDir, time.Minute)

	msg := Inbound{
		UID:     42,
		From:    "customer@example.com",
		Subject: "Questions about the product",
		Body:    "What does SLA stand for?",
		Attachments: []Attachment{
			{Filename: "questions.xlsx", Data: []byte("excel-bytes")},
		},
	}
	r.processMessage(ctx, msg)

	// 正文问题原样送引擎
	require.Equal(t, []string{"What does SLA stand for?"}, engine.questions)

	// 附件按UID子目录落盘, 保留原始文件名
	savedPath := filepath.Join(attachmentsDir, "42", "questions.xlsx")
	data, err := os.ReadFile(savedPath)
	require.NoError(t, err, "附件应落盘")
	require.Equal(t, []byte("excel-bytes"), data)
	require.Equal(t, []string{savedPath}, batch.gotPaths, "批处理应收到落盘路径")

	// 回信发给原发件人, 附上结果文件
	require.Len(t, sender.replies, 1)
	reply := sender.replies[0]
	if reply.to != "customer@example.com" {
		t.Fatalf("回信对象不符: %q", reply.to)
	}
	if reply.subject != "Questions about the product" {
		t.Fatalf("回信主题不符: %q", reply.subject)
	}
	require.Equal(t, []string{"/tmp/out/questions_answered.xlsx"}, reply.attachments)

	for _, want := range []string{
		"SLA代表服务等级协议。",
		"- Total attachments: 1",
		"- Successfully processed: 1",
		"File 'questions.xlsx' processed successfully",
	} {
		if !strings.Contains(reply.body, want) {
			t.Fatalf("回信正文缺少 %q:\n%s", want, reply.body)
		}
	}
}

func TestRunner_ProcessMessage_BlankBody(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	engine := &fakeEngine{}
	sender := &fakeSender{}
	r := newTestRunner(t, &fakeSource{}, sender, engine, &fakeBatch{})

	r.processMessage(ctx, Inbound{UID: 7, From: "a@example.com", Body: "   \n\t "})

	require.Empty(t, engine.questions, "空正文不应调用问答引擎")
	require.Len(t, sender.replies, 1)
	if !strings.Contains(sender.replies[0].body, "We could not identify any technical questions in your email body.") {
		t.Fatalf("回信应包含正文无问题提示:\n%s", sender.replies[0].body)
	}
	if !strings.Contains(sender.replies[0].body, "We did not find any Excel files in your email.") {
		t.Fatalf("回信应包含无附件提示:\n%s", sender.replies[0].body)
	}
}

func TestRunner_ProcessMessage_EngineFailure(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	sender := &fakeSender{}
	r := newTestRunner(t, &fakeSource{}, sender, &fakeEngine{err: errors.New("engine down")}, &fakeBatch{})

	r.processMessage(ctx, Inbound{UID: 7, From: "a@example.com", Body: "valid question"})

	require.Empty(t, sender.replies, "问答失败时宁可不回信")
}

func TestRunner_ProcessMessage_MissingFrom(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	engine := &fakeEngine{}
	sender := &fakeSender{}
	r := newTestRunner(t, &fakeSource{}, sender, engine, &fakeBatch{})

	r.processMessage(ctx, Inbound{UID: 7, Body: "question"})

	require.Empty(t, engine.questions)
	require.Empty(t, sender.replies, "无发件人的来信直接跳过")
}

func TestRunner_ProcessMessage_ReportMismatch(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	// 报告计数与附件数对不上时拦下回信
	sender := &fakeSender{}
	batch := &fakeBatch{report: &excel.BatchReport{Processed: 1}}
	r := newTestRunner(t, &fakeSource{}, sender, &fakeEngine{}, batch)

	r.processMessage(ctx, Inbound{
		UID:  9,
		From: "a@example.com",
		Body: "q",
		Attachments: []Attachment{
			{Filename: "a.xlsx", Data: []byte("x")},
			{Filename: "b.xlsx", Data: []byte("y")},
		},
	})

	require.Empty(t, sender.replies, "统计对不上说明处理有错, 不应回信")
}

func TestRunner_ProcessMessage_AttachmentNameTraversal(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	batch := &fakeBatch{report: &excel.BatchReport{
		Outcomes:  []string{"File 'evil.xlsx' processed successfully: Processed 1 questions successfully"},
		Processed: 1,
	}}
	attachmentsDir := t.TempDir()
	r := NewRunner(&fakeSource{}, &fakeSender{}, &fakeEngine{}, batch, attachmentsDir, time.Minute)

	r.processMessage(ctx, Inbound{
		UID:         11,
		From:        "a@example.com",
		Attachments: []Attachment{{Filename: "../../evil.xlsx", Data: []byte("x")}},
	})

	// 文件名里的路径部分被剥掉, 附件只会落在UID子目录内
	want := filepath.Join(attachmentsDir, "11", "evil.xlsx")
	require.Equal(t, []string{want}, batch.gotPaths)
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("附件应落在UID子目录内: %v", err)
	}
}

func TestRunner_ProcessMessage_SenderFailure(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	sender := &fakeSender{err: errors.New("smtp rejected")}
	r := newTestRunner(t, &fakeSource{}, sender, &fakeEngine{}, &fakeBatch{})

	// 发送失败只记录日志, 不影响后续轮询
	r.processMessage(ctx, Inbound{UID: 12, From: "a@example.com", Body: "q"})

	require.Empty(t, sender.replies)
}

func TestRunner_PollOnce_FetchFailure(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")
	ctx := context.Background()

	engine := &fakeEngine{}
	sender := &fakeSender{}
	r := newTestRunner(t, &fakeSource{err: errors.New("imap unreachable")}, sender, engine, &fakeBatch{})

	r.pollOnce(ctx)

	require.Empty(t, engine.questions)
	require.Empty(t, sender.replies)
}

func TestNewRunner_DefaultPollInterval(t *testing.T) {
	r := NewRunner(&fakeSource{}, &fakeSender{}, &fakeEngine{}, &fakeBatch{}, "", 0)
	if r.pollInterval != time.Minute {
		t.Fatalf("非法轮询间隔应回退到1分钟, 实际 %v", r.pollInterval)
	}
}

func TestRunner_Run_ImmediatePollAndStop(t *testing.T) {
	_ = logger.Init("error", "console", "stdout")

	source := &fakeSource{}
	r := newTestRunner(t, source, &fakeSender{}, &fakeEngine{}, &fakeBatch{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("取消上下文后 Run 应退出")
	}

	if source.fetches != 1 {
		t.Fatalf("启动后应立即轮询一次, 实际 %d 次", source.fetches)
	}
}
