package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailrag_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailrag_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// APIRequestSize API 请求体大小（字节）
	APIRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailrag_api_request_size_bytes",
			Help:    "API 请求体大小分布",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"method", "path"},
	)

	// APIResponseSize API 响应体大小（字节）
	APIResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailrag_api_response_size_bytes",
			Help:    "API 响应体大小分布",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"method", "path"},
	)
)

// 问答指标
var (
	// AnswersTotal 问答请求总数，outcome: answered / declined / failed
	AnswersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailrag_answers_total",
			Help: "问答请求总数",
		},
		[]string{"outcome"},
	)

	// AnswerDuration 单次问答耗时（秒）
	AnswerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailrag_answer_duration_seconds",
			Help:    "单次问答耗时分布",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// AnswerMaxSimilarity 每次检索的最高相似度
	AnswerMaxSimilarity = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mailrag_answer_max_similarity",
			Help:    "每次检索观察到的最高相似度分布",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)
)

// 摄取指标
var (
	// IngestFilesTotal 文件摄取总数，status: processed / skipped / failed
	IngestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailrag_ingest_files_total",
			Help: "文件摄取总数",
		},
		[]string{"status"},
	)

	// IngestChunksTotal 已写入向量存储的分块总数
	IngestChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailrag_ingest_chunks_total",
			Help: "已写入向量存储的分块总数",
		},
	)
)

// 批处理与邮件指标
var (
	// BatchRowsTotal 表格批处理行总数
	BatchRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailrag_batch_rows_total",
			Help: "表格批处理行总数",
		},
	)

	// MailPollsTotal 邮箱轮询次数，status: ok / error
	MailPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailrag_mail_polls_total",
			Help: "邮箱轮询次数",
		},
		[]string{"status"},
	)

	// MailRepliesTotal 已发送回复邮件数
	MailRepliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailrag_mail_replies_total",
			Help: "已发送回复邮件数",
		},
	)
)
