package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/bug_triage_server/config"
	"github.com/qs3c/bug_triage_server/internal/api"
	"github.com/qs3c/bug_triage_server/internal/api/handler"
	"github.com/qs3c/bug_triage_server/internal/database"
	"github.com/qs3c/bug_triage_server/internal/oracle"
	"github.com/qs3c/bug_triage_server/internal/pkg/cron"
	"github.com/qs3c/bug_triage_server/internal/pkg/llm"
	"github.com/qs3c/bug_triage_server/internal/pkg/oss"
	"github.com/qs3c/bug_triage_server/internal/pkg/pubsub"
	"github.com/qs3c/bug_triage_server/internal/pkg/queue"
	"github.com/qs3c/bug_triage_server/internal/pkg/status"
	"github.com/qs3c/bug_triage_server/internal/pkg/ws"
	"github.com/qs3c/bug_triage_server/internal/repository"
	"github.com/qs3c/bug_triage_server/internal/service"
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
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Printf("Database connected (%s)", cfg.Database.Driver)

	// 初始化 Redis，仅 redis 队列或 redis 进度转发时必需
	needRedis := cfg.Queue.Mode == "redis" || cfg.Progress.Backend == "redis"
	var rdb *redis.Client
	if client, err := database.NewRedis(&cfg.Redis); err != nil {
		if needRedis {
			log.Fatalf("Failed to connect redis: %v", err)
		}
		log.Printf("Warning: redis unavailable, job status cache disabled: %v", err)
	} else {
		rdb = client
		defer rdb.Close()
		log.Println("Redis connected")
	}
	if cfg.Queue.Mode == "redis" && cfg.Progress.Backend != "redis" {
		log.Println("Warning: queue.mode=redis without progress.backend=redis, workers' progress will not reach this server")
	}

	// 初始化 Repository
	jobRepo := repository.NewJobRepository(db)
	recordRepo := repository.NewFileAnalysisRepository(db)

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Enabled() {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
			ossClient = nil
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 任务状态缓存
	var (
		statusRecorder worker.StatusRecorder
		statusWriter   service.StatusWriter
		statusReader   service.StatusReader
	)
	if rdb != nil {
		store := status.NewStore(rdb, status.DefaultTTL)
		statusRecorder, statusWriter, statusReader = store, store, store
	}

	// 初始化 WebSocket Hub 和进度转发
	hub := ws.NewHub()
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var sink worker.ProgressSink = hub
	if cfg.Progress.Backend == "redis" {
		sink = worker.NewRelaySink(pubsub.NewPublisher(rdb, cfg.Progress.Channel))
		go func() {
			err := worker.RelayToHub(bgCtx, pubsub.NewSubscriber(rdb, cfg.Progress.Channel), hub)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Progress relay stopped: %v", err)
			}
		}()
		log.Println("Progress relay started")
	}

	// 任务分发：inline 在本进程后台执行，redis 交给 cmd/worker
	var (
		dispatcher service.Dispatcher
		supervisor *worker.Supervisor
	)
	if cfg.Queue.Mode == "redis" {
		dispatcher = queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
		log.Printf("Dispatching jobs to redis queue %s", cfg.Queue.AnalysisQueue)
	} else {
		llmClient, err := llm.NewClient(context.Background(), &cfg.LLM)
		if err != nil {
			log.Fatalf("Failed to init llm client: %v", err)
		}
		defer llmClient.Close()

		var uploader worker.ReportUploader
		if ossClient != nil {
			uploader = ossClient
		}
		pipeline := worker.NewPipeline(oracle.New(llmClient, cfg.LLM.Timeout()), recordRepo, jobRepo, uploader, sink, statusRecorder, cfg)
		supervisor = worker.NewSupervisor(pipeline)
		dispatcher = supervisor
		log.Printf("Running jobs inline, model: %s", cfg.LLM.Model)
	}

	// 初始化 Service
	submissionService := service.NewSubmissionService(jobRepo, dispatcher, statusWriter, cfg)
	resultService := service.NewResultService(recordRepo, jobRepo, statusReader)

	// 初始化 Handler 和 Router
	router := api.NewRouter(
		handler.NewUploadHandler(submissionService),
		handler.NewResultHandler(resultService),
		handler.NewWebSocketHandler(hub, resultService, cfg.JWT.Secret),
		cfg,
	)
	engine := router.Setup()

	// 定时清理残留目录
	cronService := cron.NewService(cfg.Upload.TempDir, cfg.Upload.ExpireHours)
	cronService.Start()

	// 本地报告补传
	if ossClient != nil {
		go worker.NewReuploader(jobRepo, ossClient, cfg).Start(bgCtx)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: engine}
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if supervisor != nil {
		if err := supervisor.Shutdown(shutdownCtx); err != nil {
			log.Printf("Abandoning %d running jobs: %v", supervisor.Active(), err)
		}
	}
	cronService.Stop()
	stopBackground()
	hub.Close()
	log.Println("Server shutdown complete")
}
