package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/qs3c/bug_triage_server/config"
	"github.com/qs3c/bug_triage_server/internal/database"
	"github.com/qs3c/bug_triage_server/internal/oracle"
	"github.com/qs3c/bug_triage_server/internal/pkg/llm"
	"github.com/qs3c/bug_triage_server/internal/pkg/oss"
	"github.com/qs3c/bug_triage_server/internal/pkg/pubsub"
	"github.com/qs3c/bug_triage_server/internal/pkg/queue"
	"github.com/qs3c/bug_triage_server/internal/pkg/status"
	"github.com/qs3c/bug_triage_server/internal/repository"
	"github.com/qs3c/bug_triage_server/internal/worker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	defer rdb.Close()
	log.Println("Redis connected")

	// 初始化 OSS（可选）
	var uploader worker.ReportUploader
	if cfg.OSS.Enabled() {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			uploader = ossClient
			log.Println("OSS client initialized")
		}
	}

	llmClient, err := llm.NewClient(context.Background(), &cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to init llm client: %v", err)
	}
	defer llmClient.Close()

	// 进度经 Redis 转发给服务端的 Hub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	sink := worker.NewRelaySink(pubsub.NewPublisher(rdb, cfg.Progress.Channel))

	pipeline := worker.NewPipeline(
		oracle.New(llmClient, cfg.LLM.Timeout()),
		repository.NewFileAnalysisRepository(db),
		repository.NewJobRepository(db),
		uploader,
		sink,
		status.NewStore(rdb, status.DefaultTTL),
		cfg,
	)
	processor := worker.NewProcessor(pipeline)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	workers := cfg.Queue.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	log.Printf("Worker started, queue: %s, max workers: %d", cfg.Queue.AnalysisQueue, workers)

	// 已取出的任务在关闭时继续跑完
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					log.Printf("Worker %d shutting down", workerID)
					return
				default:
				}

				msg, err := jobQueue.Pop(ctx, 5*time.Second)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("Worker %d: failed to pop job: %v", workerID, err)
					time.Sleep(time.Second)
					continue
				}
				if msg == nil {
					continue // 超时，继续等待
				}

				log.Printf("Worker %d: processing job %s", workerID, msg.JobID)
				if err := processor.Process(context.Background(), msg); err != nil {
					log.Printf("Worker %d: job %s rejected: %v", workerID, msg.JobID, err)
				}
			}
		}(i)
	}

	wg.Wait()
	log.Println("Worker shutdown complete")
}
