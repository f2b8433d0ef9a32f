package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"mailrag/api"
	"mailrag/internal/config"
	"mailrag/internal/excel"
	"mailrag/internal/infra"
	"mailrag/internal/logger"
	"mailrag/internal/mail"
	"mailrag/internal/rag"
	"mailrag/internal/rag/parsers"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 0. 统一加载 .env，便于集中管理 APP_* 环境变量
	loadEnvFile()

	// 获取环境变量
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	// 3. 初始化数据库
	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer infra.CloseDatabase()

	// 4. 执行数据库迁移（根据配置）
	if cfg.Database.AutoMigrate {
		if err := runMigrations(db); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("跳过自动迁移（配置已禁用）")
	}

	// 5. 构建 RAG 组件
	embedder := rag.NewOpenAIEmbeddingProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel)
	completer := rag.NewOpenAIChatProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel)
	store := rag.NewPGVectorStore(db, embedder.Dimension())
	chunker := rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	registry := parsers.NewRegistry()
	processor := rag.NewDocumentProcessor(db, store, embedder, chunker, registry)
	engine := rag.NewRAGService(store, embedder, completer, rag.Options{
		TopK:              cfg.RAG.TopK,
		MinSimilarity:     cfg.RAG.MinSimilarity,
		ContextSimilarity: cfg.RAG.ContextMinSimilarity,
		MaxAnswerTokens:   cfg.OpenAI.MaxAnswerTokens,
	})

	// 6. 启动时摄取文档目录
	report, err := processor.ProcessDirectory(context.Background(), cfg.RAG.DocumentsDir)
	if err != nil {
		logger.Error("启动摄取失败", zap.Error(err))
	} else {
		logger.Info("启动摄取完成",
			zap.Int("processed", report.Processed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
	}

	// 7. 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 8. 创建路由
	router := api.SetupRouter(db, cfg, processor)

	// 9. 创建 HTTP 服务器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 10. 启动服务器（goroutine）
	go func() {
		logger.Info("HTTP 服务器启动",
			zap.Int("port", cfg.Server.Port),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 启动邮件代理（goroutine，配置了邮箱时）
	mailCtx, stopMail := context.WithCancel(context.Background())
	defer stopMail()
	if cfg.Mail.Address != "" {
		fetcher := mail.NewFetcher(cfg.Mail.IMAPServer, cfg.Mail.Address, cfg.Mail.Password)
		sender := mail.NewSender(cfg.Mail.SMTPServer, cfg.Mail.SMTPPort, cfg.Mail.Address, cfg.Mail.Password, "")
		workbooks := excel.NewProcessor(engine, cfg.Excel.DisplayMinSimilarity)
		runner := mail.NewRunner(fetcher, sender, engine, workbooks,
			cfg.Mail.AttachmentsDir, time.Duration(cfg.Mail.PollInterval)*time.Second)

		go func() {
			if err := runner.Run(mailCtx); err != nil {
				logger.Error("邮件代理退出异常", zap.Error(err))
			}
		}()
	} else {
		logger.Info("未配置邮箱地址，邮件代理未启动")
	}

	// 11. 优雅关闭
	gracefulShutdown(server, stopMail)
}

// loadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
		} else {
			fmt.Printf("已加载环境变量文件: %s\n", path)
		}
	} else {
		fmt.Println("未找到 .env 文件，将仅使用系统环境变量和 config/* 配置")
	}
}

// resolveEnvPath 尝试从当前工作目录、可执行文件目录向上查找根目录 .env
func resolveEnvPath() string {
	candidates := collectEnvCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func collectEnvCandidates() []string {
	seen := make(map[string]struct{})
	var candidates []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		candidates = append(candidates, path)
	}

	traverse := func(start string) {
		dir := filepath.Clean(start)
		for i := 0; i < 8; i++ {
			if dir == "" || dir == string(filepath.Separator) || dir == "." {
				break
			}
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if wd, err := os.Getwd(); err == nil {
		traverse(wd)
	}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		traverse(exeDir)
	}

	return candidates
}

// runMigrations 执行数据库迁移
func runMigrations(db *gorm.DB) error {
	// 向量列依赖 pgvector 扩展，必须先启用
	if err := infra.EnsureVectorExtension(db); err != nil {
		return err
	}

	return infra.AutoMigrate(db, &rag.Document{}, &rag.Chunk{})
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(server *http.Server, stopMail context.CancelFunc) {
	// 监听中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	// 先停邮件轮询
	stopMail()

	// 设置超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if err := infra.CloseDatabase(); err != nil {
		logger.Error("数据库关闭异常", zap.Error(err))
	}

	logger.Info("服务器已安全关闭")
}
