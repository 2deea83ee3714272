package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/domain/repository"
	errs "z-novel-orchestrator/pkg/errors"
	"z-novel-orchestrator/pkg/logger"
	"z-novel-orchestrator/pkg/metrics"
)

const (
	defaultMaxConcurrentJobs = 3
	defaultQueueSize         = 16
	defaultShutdownTimeout   = 30 * time.Second
)

// JobRunner 任务执行器接口
type JobRunner interface {
	Run(ctx context.Context, job *entity.GenerationJob) error
}

// jobHandle 在途任务句柄
type jobHandle struct {
	jobID     string
	cancel    context.CancelFunc
	cancelled bool
	reason    string
}

// Scheduler 生成任务调度器
// 同一项目同时只允许一个在途任务，全局并发受上限约束，
// 超出并发的任务进入有界 FIFO 队列
type Scheduler struct {
	jobs   repository.JobRepository
	runner JobRunner

	sem   *semaphore.Weighted
	queue chan *entity.GenerationJob

	mu     sync.Mutex
	active map[string]*jobHandle

	baseCtx         context.Context
	stop            context.CancelFunc
	wg              sync.WaitGroup
	shutdownTimeout time.Duration
	draining        bool
}

// NewScheduler 创建调度器
func NewScheduler(cfg config.SchedulerConfig, jobs repository.JobRepository, runner JobRunner) *Scheduler {
	maxConcurrent := cfg.MaxConcurrentJobs
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentJobs
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	baseCtx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:            jobs,
		runner:          runner,
		sem:             semaphore.NewWeighted(int64(maxConcurrent)),
		queue:           make(chan *entity.GenerationJob, queueSize),
		active:          make(map[string]*jobHandle),
		baseCtx:         baseCtx,
		stop:            stop,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start 启动调度循环
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.dispatchLoop()
}

// Enqueue 提交生成任务，调用方在放行后再持久化任务记录
// 同一项目已有在途任务时返回 ErrAlreadyRunning，队列已满返回 ErrQueueFull
func (s *Scheduler) Enqueue(ctx context.Context, job *entity.GenerationJob) error {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return errs.ErrServiceUnavailable.WithDetail("scheduler is shutting down")
	}
	if _, exists := s.active[job.ProjectID]; exists {
		s.mu.Unlock()
		return errs.ErrAlreadyRunning
	}

	// 进程重启后在途任务仅存在于数据库，需要兜底检查
	existing, err := s.jobs.GetActiveByProject(ctx, job.ProjectID)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to check active job: %w", err)
	}
	if existing != nil && existing.ID != job.ID {
		s.mu.Unlock()
		return errs.ErrAlreadyRunning.WithDetail(fmt.Sprintf("job %s is already %s", existing.ID, existing.Status))
	}

	s.active[job.ProjectID] = &jobHandle{jobID: job.ID}
	s.mu.Unlock()

	select {
	case s.queue <- job:
		metrics.QueuedJobs.Inc()
		logger.FromContext(ctx).Info("job enqueued",
			"job_id", job.ID,
			"project_id", job.ProjectID,
		)
		return nil
	default:
		s.release(job.ProjectID)
		return errs.ErrQueueFull
	}
}

// Cancel 取消项目的在途任务
// 排队中的任务直接出局，运行中的任务通过上下文协作式取消
func (s *Scheduler) Cancel(projectID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle, ok := s.active[projectID]
	if !ok {
		return errs.ErrJobNotFound.WithDetail("no active job for project")
	}
	handle.cancelled = true
	handle.reason = reason
	if handle.cancel != nil {
		handle.cancel()
	}
	return nil
}

// IsActive 项目是否有在途任务
func (s *Scheduler) IsActive(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[projectID]
	return ok
}

// ActiveCount 在途任务数（含排队）
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown 优雅停机：不再接收新任务，等待在途任务完成，
// 超时后取消 base 上下文强制收敛
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	close(s.queue)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		s.stop()
		return nil
	case <-timer.C:
		s.stop()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		s.stop()
		return ctx.Err()
	}
}

// dispatchLoop 调度循环：按并发上限从队列取任务执行
func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()

	for job := range s.queue {
		if err := s.sem.Acquire(s.baseCtx, 1); err != nil {
			s.finalizeSkipped(job, "scheduler stopped")
			continue
		}

		s.mu.Lock()
		handle, ok := s.active[job.ProjectID]
		if !ok || handle.cancelled {
			reason := "cancelled while queued"
			if handle != nil && handle.reason != "" {
				reason = handle.reason
			}
			s.mu.Unlock()
			s.sem.Release(1)
			s.finalizeSkipped(job, reason)
			continue
		}
		jobCtx, cancel := context.WithCancel(s.baseCtx)
		handle.cancel = cancel
		s.mu.Unlock()

		metrics.QueuedJobs.Dec()
		s.wg.Add(1)
		go s.execute(jobCtx, cancel, job)
	}
}

// execute 执行单个任务
func (s *Scheduler) execute(ctx context.Context, cancel context.CancelFunc, job *entity.GenerationJob) {
	defer s.wg.Done()
	defer s.sem.Release(1)
	defer cancel()
	defer s.release(job.ProjectID)

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	log := logger.Default()
	start := time.Now()

	err := s.runner.Run(ctx, job)

	status := "completed"
	switch {
	case err == nil:
	case job.Status == entity.JobStatusCancelled:
		status = "cancelled"
	default:
		status = "failed"
	}
	metrics.JobDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Warn("job finished with error",
			"job_id", job.ID,
			"project_id", job.ProjectID,
			"status", status,
			"duration", time.Since(start),
			"error", err,
		)
		return
	}
	log.Info("job finished",
		"job_id", job.ID,
		"project_id", job.ProjectID,
		"duration", time.Since(start),
	)
}

// finalizeSkipped 落盘未执行即出局的任务状态
func (s *Scheduler) finalizeSkipped(job *entity.GenerationJob, reason string) {
	defer s.release(job.ProjectID)
	metrics.QueuedJobs.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job.Cancel(reason)
	if err := s.jobs.Update(ctx, job); err != nil {
		logger.Default().Error("failed to persist skipped job",
			"job_id", job.ID,
			"error", err,
		)
	}
	metrics.JobDuration.WithLabelValues("cancelled").Observe(0)
}

// release 释放项目的在途占位
func (s *Scheduler) release(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, projectID)
}
