package parsers

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildDocx 构造只含 word/document.xml 的最小 DOCX 包
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocxParser_Parse(t *testing.T) {
	p := NewDocxParser()

	t.Run("按段落抽取文本", func(t *testing.T) {
		data := buildDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>第一段内容</w:t></w:r></w:p>
    <w:p><w:r><w:t>第二段</w:t></w:r><w:r><w:t>续写</w:t></w:r></w:p>
  </w:body>
</w:document>`)

		text, err := p.Parse(bytes.NewReader(data))
		require.NoError(t, err)
		if text != "第一段内容\n第二段续写" {
			t.Fatalf("抽取结果不符: %q", text)
		}
	})

	t.Run("非ZIP内容报错", func(t *testing.T) {
		_, err := p.Parse(strings.NewReader("这不是一个DOCX文件"))
		require.Error(t, err)
		if !strings.Contains(err.Error(), "打开 DOCX 失败") {
			t.Fatalf("错误信息不符: %v", err)
		}
	})

	t.Run("缺少document.xml报错", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, err := zw.Create("other.txt")
		require.NoError(t, err)
		_, err = w.Write([]byte("x"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		_, err = p.Parse(bytes.NewReader(buf.Bytes()))
		require.Error(t, err)
		if !strings.Contains(err.Error(), "document.xml") {
			t.Fatalf("错误信息不符: %v", err)
		}
	})
}

func TestDocParser_Parse(t *testing.T) {
	p := NewDocParser()

	t.Run("提取可打印文本", func(t *testing.T) {
		data := append([]byte{0x00, 0x01}, []byte("Hello world")...)
		data = append(data, 0x02, 0x03)
		data = append(data, []byte("second run")...)

		text, err := p.Parse(bytes.NewReader(data))
		require.NoError(t, err)
		if !strings.Contains(text, "Hello world") || !strings.Contains(text, "second run") {
			t.Fatalf("应保留可打印片段: %q", text)
		}
	})

	t.Run("纯二进制内容报错", func(t *testing.T) {
		_, err := p.Parse(bytes.NewReader([]byte{0x01, 0x02, 0x03, 0x04}))
		require.Error(t, err)
	})
}
