package mail

import (
	"bytes"
	"fmt"
	"text/template"
)

// replyTemplate 回信正文模板
// 正文回答与附件统计各占一段, 空值时展示对应的提示语
const replyTemplate = `Hello,

Thank you for your email.

{{if .BodyResponse}}{{.BodyResponse}}{{else}}We could not identify any technical questions in your email body.{{end}}

{{if eq .NumAttachments 0}}We did not find any Excel files in your email.{{else}}Attachment processing results:
- Total attachments: {{.NumAttachments}}
- Successfully processed: {{.NumProcessedFiles}}
- Failed: {{.NumFailedFiles}}
- Skipped: {{.NumSkippedFiles}}
{{if .DetailedSummary}}
{{.DetailedSummary}}
{{end}}{{end}}
Best regards,
Your Document Assistant
`

var replyTmpl = template.Must(template.New("reply").Parse(replyTemplate))

// ReplyData 渲染回信所需的全部上下文
type ReplyData struct {
	BodyResponse      string // 对正文问题的回答, 正文无问题时为空
	NumAttachments    int    // 附件总数
	NumProcessedFiles int    // 成功处理的附件数
	NumFailedFiles    int    // 处理失败的附件数
	NumSkippedFiles   int    // 被跳过的附件数
	DetailedSummary   string // 逐文件结果摘要
}

// RenderReply 渲染回信正文
// 三类计数之和必须等于附件总数, 对不上说明上游统计有错, 直接报错不发信
func RenderReply(data ReplyData) (string, error) {
	total := data.NumProcessedFiles + data.NumFailedFiles + data.NumSkippedFiles
	if total != data.NumAttachments {
		return "", fmt.Errorf(
			"Sum of processed (%d), failed (%d), and skipped (%d) files (%d) must match num_attachments (%d)",
			data.NumProcessedFiles, data.NumFailedFiles, data.NumSkippedFiles,
			total, data.NumAttachments)
	}

	var buf bytes.Buffer
	if err := replyTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("渲染回信模板失败: %w", err)
	}
	return buf.String(), nil
}
