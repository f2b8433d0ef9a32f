package documents

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	response "mailrag/api/handlers/common"
	"mailrag/internal/logger"
	"mailrag/pkg/httputil"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ingestor 文档摄取接口，由 rag.DocumentProcessor 实现
type Ingestor interface {
	ProcessFileWithURL(ctx context.Context, path, url string) error
}

// IngestHandler PDF 摄取处理器
type IngestHandler struct {
	ingestor Ingestor
	password string
	client   *httputil.Client
}

// NewIngestHandler 创建 PDF 摄取处理器
func NewIngestHandler(ingestor Ingestor, password string) *IngestHandler {
	return &IngestHandler{
		ingestor: ingestor,
		password: password,
		client: httputil.NewClient(
			httputil.WithTimeout(60*time.Second),
			httputil.WithRetries(2),
		),
	}
}

// ProcessPDFURLRequest 按 URL 摄取 PDF 的请求体
type ProcessPDFURLRequest struct {
	URL      string `json:"url" binding:"required,url"`
	Password string `json:"password"`
}

// ProcessPDFURL 下载指定 URL 的 PDF 并摄取入库
// @Summary 按 URL 摄取 PDF 文档
// @Tags Documents
// @Accept json
// @Produce json
// @Param request body ProcessPDFURLRequest true "PDF 地址与访问口令"
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/process-pdf-url [post]
func (h *IngestHandler) ProcessPDFURL(c *gin.Context) {
	var req ProcessPDFURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "Invalid request: " + err.Error()})
		return
	}

	// 校验访问口令，未配置口令时一律拒绝
	if h.password == "" || req.Password != h.password {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Success: false, Message: "Invalid password"})
		return
	}

	// 下载文件内容
	content, err := h.download(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "Failed to download PDF: " + err.Error()})
		return
	}

	// 按文件头校验内容确实是 PDF，不信任 URL 后缀和响应头
	if !mimetype.Detect(content).Is("application/pdf") {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "The provided URL does not point to a valid PDF file"})
		return
	}

	// 写入临时文件后交给摄取管道，以下载 URL 作为文档身份
	tmpPath, err := writeTempPDF(content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "Error processing PDF: " + err.Error()})
		return
	}
	defer os.Remove(tmpPath)

	if err := h.ingestor.ProcessFileWithURL(c.Request.Context(), tmpPath, req.URL); err != nil {
		logger.Error("PDF 摄取失败", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "Error processing PDF: " + err.Error()})
		return
	}

	logger.Info("PDF 摄取完成", zap.String("url", req.URL), zap.Int("bytes", len(content)))
	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: "PDF processed successfully"})
}

// download 拉取 URL 内容，非 2xx 状态视为下载失败
func (h *IngestHandler) download(ctx context.Context, url string) ([]byte, error) {
	resp, err := h.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// writeTempPDF 将内容写入临时 PDF 文件，返回文件路径
func writeTempPDF(content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "ingest-*.pdf")
	if err != nil {
		return "", err
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
