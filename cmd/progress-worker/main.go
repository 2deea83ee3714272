// Package main 进度事件归档器入口（progress-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	"z-novel-orchestrator/internal/infrastructure/messaging"
	"z-novel-orchestrator/internal/infrastructure/persistence/postgres"
	"z-novel-orchestrator/internal/infrastructure/persistence/redis"
	"z-novel-orchestrator/pkg/logger"
	"z-novel-orchestrator/pkg/tracer"
)

const (
	// eventRetention 归档事件保留时长，超期清理
	eventRetention = 30 * 24 * time.Hour
	// retentionSweepInterval 清理周期
	retentionSweepInterval = 12 * time.Hour
	// dlqAlertThreshold DLQ 积压告警阈值
	dlqAlertThreshold = 100
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "progress-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	eventRepo := postgres.NewEventRepository(pgClient)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamProgress,
		Group:         messaging.ConsumerGroupArchiver,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	// 所有进度事件类型共用同一个归档处理器
	archive := func(ctx context.Context, msg *messaging.Message) error {
		var event entity.ProgressEvent
		if err := msg.UnmarshalPayload(&event); err != nil {
			return fmt.Errorf("failed to decode progress event: %w", err)
		}
		return eventRepo.Create(ctx, &event)
	}
	for _, typ := range entity.AllProgressEventTypes() {
		consumer.RegisterHandler(string(typ), archive)
	}

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	go consumer.MonitorDLQ(ctx, dlqAlertThreshold)
	go retentionSweeper(ctx, eventRepo)

	log := logger.FromContext(ctx)
	log.Info("progress-worker started",
		"stream", messaging.StreamProgress,
		"group", messaging.ConsumerGroupArchiver,
	)

	<-ctx.Done()

	log.Info("progress-worker shutting down")
	consumer.Stop()
}

// retentionSweeper 周期性清理超过保留时长的归档事件
func retentionSweeper(ctx context.Context, events repository.EventRepository) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-eventRetention)
			deleted, err := events.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				log.Error("event retention sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("expired progress events removed", "count", deleted, "cutoff", cutoff)
			}
		}
	}
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "archiver"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
