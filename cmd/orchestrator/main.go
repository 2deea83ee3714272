// Package main 小说生成编排服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"z-novel-orchestrator/internal/application/generation"
	"z-novel-orchestrator/internal/application/progress"
	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	"z-novel-orchestrator/internal/infrastructure/agent"
	"z-novel-orchestrator/internal/infrastructure/llm"
	"z-novel-orchestrator/internal/infrastructure/messaging"
	"z-novel-orchestrator/internal/infrastructure/persistence/postgres"
	redisinfra "z-novel-orchestrator/internal/infrastructure/persistence/redis"
	"z-novel-orchestrator/internal/interfaces/http/handler"
	"z-novel-orchestrator/internal/interfaces/http/router"
	einoobs "z-novel-orchestrator/internal/observability/eino"
	"z-novel-orchestrator/pkg/logger"
	"z-novel-orchestrator/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting orchestrator",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 初始化 Eino 全局 callbacks（模型层指标/追踪）
	einoobs.Init()

	// 基础设施
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to connect postgres", err)
	}
	defer func() {
		if err := pgClient.Close(); err != nil {
			log.Error("failed to close postgres", "error", err)
		}
	}()

	redisClient, err := redisinfra.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to connect redis", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("failed to close redis", "error", err)
		}
	}()

	projectRepo := postgres.NewProjectRepository(pgClient)
	chapterRepo := postgres.NewChapterRepository(pgClient)
	jobRepo := postgres.NewJobRepository(pgClient)
	eventRepo := postgres.NewEventRepository(pgClient)

	cache := redisinfra.NewCache(redisClient)
	limiter := redisinfra.NewRateLimiter(redisClient)

	// Agent 团队
	factory := llm.NewEinoFactory(cfg)
	registry, err := agent.NewRegistry(ctx, cfg, factory, limiter)
	if err != nil {
		logger.Fatal(ctx, "failed to build agent registry", err)
	}
	log.Info("agent registry ready", "roles", registry.Roles())

	// 进度事件总线：本地订阅之外挂接 Redis Stream 与归档
	bus := progress.NewBus(0)
	defer bus.Close()

	producer := messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
	bus.AddSink(progress.SinkFunc(func(ctx context.Context, event *entity.ProgressEvent) error {
		_, err := producer.PublishProgress(ctx, event)
		return err
	}))

	// 同步归档模式直接入库，异步模式由 progress-worker 消费流归档
	if cfg.Features.EventArchival.Enabled && !cfg.Features.EventArchival.Async {
		bus.AddSink(progress.SinkFunc(func(ctx context.Context, event *entity.ProgressEvent) error {
			return eventRepo.Create(ctx, event)
		}))
	}

	// 生成编排与调度
	orch := generation.NewOrchestrator(projectRepo, chapterRepo, jobRepo,
		postgres.NewTxManager(pgClient), registry, generation.NewGate(cfg.Quality), bus, cfg.Generation)
	sched := generation.NewScheduler(cfg.Scheduler, jobRepo, orch)

	recoverOrphanedJobs(ctx, jobRepo, projectRepo)
	sched.Start()

	// HTTP 服务
	handlers := router.Handlers{
		Health:     handler.NewHealthHandler(pgClient, redisClient),
		Project:    handler.NewProjectHandler(projectRepo),
		Generation: handler.NewGenerationHandler(projectRepo, jobRepo, sched, registry, bus, cache),
		Chapter:    handler.NewChapterHandler(chapterRepo),
		Event:      handler.NewEventHandler(eventRepo),
		Stream:     handler.NewStreamHandler(bus),
	}
	r := router.New(cfg, handlers, limiter)

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced to shutdown", "error", err)
	}
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Error("scheduler forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

// recoverOrphanedJobs 将上次进程异常退出遗留的 running 任务标记为失败
// 对应项目回到可重启状态，新的生成请求会从已验收章节之后续传
func recoverOrphanedJobs(ctx context.Context, jobs repository.JobRepository, projects repository.ProjectRepository) {
	log := logger.FromContext(ctx)

	running, err := jobs.GetRunningJobs(ctx)
	if err != nil {
		log.Error("failed to scan orphaned jobs", "error", err)
		return
	}

	for _, job := range running {
		job.Fail("interrupted by service restart")
		if err := jobs.Update(ctx, job); err != nil {
			log.Error("failed to fail orphaned job", "error", err, "job_id", job.ID)
			continue
		}

		project, err := projects.GetByID(ctx, job.ProjectID)
		if err != nil {
			log.Error("failed to load project of orphaned job", "error", err, "job_id", job.ID)
			continue
		}
		if project.Status == entity.ProjectStatusGenerating {
			project.Fail("interrupted by service restart")
			if err := projects.Update(ctx, project); err != nil {
				log.Error("failed to reset project status", "error", err, "project_id", project.ID)
			}
		}

		log.Warn("orphaned job recovered", "job_id", job.ID, "project_id", job.ProjectID)
	}
}
