package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	RAG      RAGConfig      `mapstructure:"rag"`
	Excel    ExcelConfig    `mapstructure:"excel"`
	Mail     MailConfig     `mapstructure:"mail"`
	API      APIConfig      `mapstructure:"api"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// OpenAIConfig OpenAI 模型配置
type OpenAIConfig struct {
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	EmbeddingModel  string `mapstructure:"embedding_model"`
	ChatModel       string `mapstructure:"chat_model"`
	MaxAnswerTokens int    `mapstructure:"max_answer_tokens"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// RAGConfig 检索与接纳阈值配置
type RAGConfig struct {
	ChunkSize            int     `mapstructure:"chunk_size"`
	ChunkOverlap         int     `mapstructure:"chunk_overlap"`
	TopK                 int     `mapstructure:"top_k"`
	MinSimilarity        float64 `mapstructure:"min_similarity"`         // 低于该值直接拒答
	ContextMinSimilarity float64 `mapstructure:"context_min_similarity"` // 进入上下文的最低相似度
	DocumentsDir         string  `mapstructure:"documents_dir"`
}

// ExcelConfig 表格批处理配置
type ExcelConfig struct {
	DisplayMinSimilarity float64 `mapstructure:"display_min_similarity"` // 展示答案的最低相似度
}

// MailConfig 邮件代理配置
type MailConfig struct {
	Address        string `mapstructure:"address"`
	Password       string `mapstructure:"password"`
	IMAPServer     string `mapstructure:"imap_server"`
	SMTPServer     string `mapstructure:"smtp_server"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	PollInterval   int    `mapstructure:"poll_interval"` // 秒
	AttachmentsDir string `mapstructure:"attachments_dir"`
}

// APIConfig HTTP 接口配置
type APIConfig struct {
	IngestPassword string `mapstructure:"ingest_password"`
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	setDefaults(v)

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// setDefaults 注册各配置项的默认值，配置文件和环境变量均可覆盖
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.max_answer_tokens", 100)
	v.SetDefault("openai.timeout_seconds", 60)

	v.SetDefault("rag.chunk_size", 512)
	v.SetDefault("rag.chunk_overlap", 50)
	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.min_similarity", 0.67)
	v.SetDefault("rag.context_min_similarity", 0.67)
	v.SetDefault("rag.documents_dir", "./documents")

	v.SetDefault("excel.display_min_similarity", 0.67)

	v.SetDefault("mail.imap_server", "imap.gmail.com:993")
	v.SetDefault("mail.smtp_server", "smtp.gmail.com")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.poll_interval", 60)
	v.SetDefault("mail.attachments_dir", "./attachments")
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
