package mail

// Attachment 邮件附件
type Attachment struct {
	Filename string // 附件原始文件名
	Data     []byte // 附件内容
}

// Inbound 一封待处理的来信
// Body 取第一个 text/plain 正文部分, 没有纯文本正文时为空串
type Inbound struct {
	UID         uint32 // IMAP 消息UID
	From        string // 发件人地址, 回信目标
	Subject     string // 原始主题, 回信时加 Re: 前缀
	Body        string
	Attachments []Attachment
}
