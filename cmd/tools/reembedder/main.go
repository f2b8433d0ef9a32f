package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/pgvector/pgvector-go"

	"mailrag/internal/config"
	"mailrag/internal/infra"
	"mailrag/internal/logger"
	"mailrag/internal/rag"
)

// 重嵌入工具，切换嵌入模型后对 chunks 表全量重算向量。
// 按 created_at, id 稳定排序分页，更新不影响排序，Offset 翻页安全。
func main() {
	env := flag.String("env", "dev", "配置环境 dev/prod/test")
	batchSize := flag.Int("batch", 200, "每批重嵌入的分块数量")
	dryRun := flag.Bool("dry-run", false, "仅打印不写回数据库")
	flag.Parse()

	cfg, err := config.Load(*env, "")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// InitDatabase 的 GORM 日志适配器依赖全局 logger
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Sync()

	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer infra.CloseDatabase()

	embedder := rag.NewOpenAIEmbeddingProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.EmbeddingModel)
	fmt.Printf("目标嵌入模型: %s，维度 %d\n", embedder.Model(), embedder.Dimension())

	ctx := context.Background()
	totalProcessed := 0
	for {
		var chunks []rag.Chunk
		if err := db.WithContext(ctx).
			Order("created_at ASC, id ASC").
			Limit(*batchSize).
			Offset(totalProcessed).
			Find(&chunks).Error; err != nil {
			log.Fatalf("查询 chunks 失败: %v", err)
		}

		if len(chunks) == 0 {
			break
		}

		if *dryRun {
			fmt.Printf("[dry-run] 计划重嵌入 %d 个分块\n", len(chunks))
		} else {
			texts := make([]string, len(chunks))
			for i, chunk := range chunks {
				texts[i] = chunk.Text
			}

			vectors, err := embedder.EmbedBatch(ctx, texts)
			if err != nil {
				log.Fatalf("批量嵌入失败: %v", err)
			}

			for i, chunk := range chunks {
				if err := db.WithContext(ctx).Model(&rag.Chunk{}).
					Where("id = ?", chunk.ID).
					Update("embedding", pgvector.NewVector(vectors[i])).Error; err != nil {
					log.Fatalf("更新 chunk %s 失败: %v", chunk.ID, err)
				}
			}
		}

		totalProcessed += len(chunks)
		fmt.Printf("已处理 %d 个分块\n", totalProcessed)
	}

	fmt.Printf("重嵌入完成，总计 %d 个分块\n", totalProcessed)
}
