// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"scribe-eye-go/internal/chunker"
	"scribe-eye-go/internal/config"
	"scribe-eye-go/internal/extractor"
	"scribe-eye-go/internal/handler"
	"scribe-eye-go/internal/indexer"
	"scribe-eye-go/internal/pipeline"
	"scribe-eye-go/internal/qa"
	"scribe-eye-go/internal/repository"
	"scribe-eye-go/internal/service"
	"scribe-eye-go/internal/worker"
	"scribe-eye-go/pkg/database"
	"scribe-eye-go/pkg/embedding"
	"scribe-eye-go/pkg/es"
	"scribe-eye-go/pkg/kafka"
	"scribe-eye-go/pkg/llm"
	"scribe-eye-go/pkg/log"
	"scribe-eye-go/pkg/memindex"
	"scribe-eye-go/pkg/storage"
	"scribe-eye-go/pkg/tasks"
)

// vectorIndex 同时满足 indexer 与 qa 对向量库的需求。
type vectorIndex interface {
	indexer.VectorIndex
	qa.Searcher
}

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	seedDir := flag.String("seed", "initfile", "启动时导入的剧本目录，每个子目录对应一个项目")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 初始化数据库
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatal("MySQL 初始化失败", err)
	}
	defer database.CloseMySQL(db)
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("数据库迁移失败", err)
	}

	// 4. 剧本快照：未配置 MinIO 时退回进程内存储
	var snapshots storage.SnapshotStore
	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewMinioStore(rootCtx, cfg.MinIO)
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		snapshots = store
	} else {
		log.Warnf("未配置 minio.endpoint，剧本快照保存在内存中")
		snapshots = storage.NewMemoryStore()
	}

	// 5. 向量索引：未配置 Elasticsearch 时使用进程内索引
	var vectors vectorIndex
	if cfg.Elasticsearch.Addresses != "" {
		esClient, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			log.Fatal("Elasticsearch 客户端创建失败", err)
		}
		if err := es.EnsureIndex(esClient, cfg.Elasticsearch.IndexName, cfg.Elasticsearch.Dimensions); err != nil {
			log.Fatal("Elasticsearch 索引初始化失败", err)
		}
		vectors = es.NewVectorIndex(esClient, cfg.Elasticsearch.IndexName)
	} else {
		log.Warnf("未配置 elasticsearch.addresses，向量索引保存在内存中")
		vectors = memindex.New()
	}

	// 6. 初始化 Repository
	projectRepo := repository.NewProjectRepository(db)
	scriptRepo := repository.NewScriptRepository(db)
	entityRepo := repository.NewEntityRepository(db)

	// 7. 组装核心能力
	splitter, err := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		log.Fatal("切块参数无效", err)
	}
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	structuredClient := llm.NewStructuredClient(cfg.LLM, cfg.Extraction)

	docIndexer := indexer.New(splitter, embeddingClient, vectors, cfg.Embedding.Model)
	entityExtractor := extractor.New(structuredClient, entityRepo)
	qaEngine := qa.NewEngine(embeddingClient, vectors, llmClient, cfg.LLM, cfg.Retrieval.TopK)
	core := pipeline.NewCore(docIndexer, entityExtractor, qaEngine)
	processor := pipeline.NewProcessor(core, snapshots, scriptRepo)

	// 8. 启动后台任务队列
	var (
		queue     tasks.Enqueuer
		drains    []func() // 在取消 rootCtx 之前执行，让已入队的任务正常完成
		closers   []func()
		consumers sync.WaitGroup
	)
	switch cfg.Queue.Driver {
	case "memory":
		pool := worker.NewPool(processor, cfg.Queue.Workers, cfg.Queue.QueueSize, cfg.Kafka.MaxAttempts)
		pool.Start(rootCtx)
		queue = pool
		drains = append(drains, pool.Stop)
	case "kafka":
		redisClient, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			log.Fatal("Redis 初始化失败", err)
		}
		producer := kafka.NewProducer(cfg.Kafka)
		attempts := repository.NewTaskAttemptRepository(redisClient)
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			kafka.Supervise(rootCtx, func() *kafka.Consumer {
				return kafka.NewConsumer(cfg.Kafka, processor, attempts)
			}, 5*time.Second)
		}()
		queue = producer
		closers = append(closers,
			func() { _ = producer.Close() },
			func() { _ = redisClient.Close() },
		)
	default:
		log.Fatalf("未知的 queue.driver: %q", cfg.Queue.Driver)
	}

	// 9. 初始化 Service (依赖注入)
	projectService := service.NewProjectService(projectRepo, scriptRepo, entityRepo, docIndexer, snapshots)
	scriptService := service.NewScriptService(projectService, scriptRepo, entityRepo, docIndexer, snapshots, queue)
	entityService := service.NewEntityService(projectService, entityRepo)
	qaService := service.NewQAService(projectService, core)

	// 9.1 导入 initfile 目录下的剧本，已导入则跳过
	go importSeedScripts(rootCtx, *seedDir, projectService, scriptService)

	// 10. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(handler.Handlers{
		Project: handler.NewProjectHandler(projectService),
		Script:  handler.NewScriptHandler(scriptService),
		Entity:  handler.NewEntityHandler(entityService),
		QA:      handler.NewQAHandler(qaService, cfg.Server.AllowedOrigins),
	}, cfg.Server.AllowedOrigins)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 先处理完进程内队列，再停止消费者，最后关闭生产者与连接
	for _, drain := range drains {
		drain()
	}
	cancelRoot()
	consumers.Wait()
	for _, closeFn := range closers {
		closeFn()
	}
	log.Info("服务已优雅关闭")
}
