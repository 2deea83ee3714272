// Package agent 提供多智能体 LLM 客户端
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
	redisinfra "z-novel-orchestrator/internal/infrastructure/persistence/redis"
	einoobs "z-novel-orchestrator/internal/observability/eino"
	"z-novel-orchestrator/pkg/logger"
	"z-novel-orchestrator/pkg/metrics"
)

var tracer = otel.Tracer("agent")

// Outcome 一次 Agent 调用的产出
type Outcome struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// Completer Agent 调用接口
type Completer interface {
	Role() entity.AgentRole
	Provider() string
	Model() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*Outcome, error)
}

// Agent 基于 Eino ChatModel 的角色客户端
// 瞬时错误按退避策略有限重试，致命错误立即返回
type Agent struct {
	role      entity.AgentRole
	provider  string
	modelName string
	chat      model.BaseChatModel
	limiter   *redisinfra.RateLimiter
	rateKey   string
	rateLimit int
	rateWin   time.Duration
	backoff   config.BackoffConfig
	retries   int
}

// AgentOption Agent 可选配置
type AgentOption func(*Agent)

// WithRateLimiter 启用提供商级限流
func WithRateLimiter(limiter *redisinfra.RateLimiter, limit int, window time.Duration) AgentOption {
	return func(a *Agent) {
		a.limiter = limiter
		a.rateLimit = limit
		a.rateWin = window
	}
}

// NewAgent 创建角色客户端
func NewAgent(role entity.AgentRole, provider, modelName string, chat model.BaseChatModel, backoff config.BackoffConfig, retries int, opts ...AgentOption) *Agent {
	if retries <= 0 {
		retries = 3
	}
	if backoff.Initial <= 0 {
		backoff = config.BackoffConfig{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2}
	}
	a := &Agent{
		role:      role,
		provider:  provider,
		modelName: modelName,
		chat:      chat,
		rateKey:   redisinfra.BuildProviderRateLimitKey(provider),
		backoff:   backoff,
		retries:   retries,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Role 返回角色
func (a *Agent) Role() entity.AgentRole {
	return a.role
}

// Provider 返回提供商名称
func (a *Agent) Provider() string {
	return a.provider
}

// Model 返回模型名称
func (a *Agent) Model() string {
	return a.modelName
}

// Complete 执行一次对话补全
func (a *Agent) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "agent.Complete",
		trace.WithAttributes(
			attribute.String("agent.role", string(a.role)),
			attribute.String("agent.provider", a.provider),
			attribute.String("agent.model", a.modelName),
		))
	defer span.End()

	ctx = einoobs.WithProvider(ctx, a.provider)
	log := logger.FromContext(ctx)

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		if attempt > 0 {
			wait := a.backoffDuration(attempt - 1)
			log.Warn("agent call retrying",
				"role", a.role,
				"provider", a.provider,
				"attempt", attempt,
				"backoff", wait,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := a.waitForQuota(ctx); err != nil {
			lastErr = err
			continue
		}

		start := time.Now()
		resp, err := a.chat.Generate(ctx, messages)
		elapsed := time.Since(start)
		metrics.AgentCallDuration.WithLabelValues(string(a.role), a.provider).Observe(elapsed.Seconds())

		if err != nil {
			classified := Classify(err)
			span.RecordError(classified)
			metrics.AgentCallTotal.WithLabelValues(string(a.role), a.provider, "error").Inc()

			if !IsTransient(classified) {
				return nil, classified
			}
			lastErr = classified
			continue
		}

		metrics.AgentCallTotal.WithLabelValues(string(a.role), a.provider, "ok").Inc()

		outcome := &Outcome{
			Text:     resp.Content,
			Provider: a.provider,
			Model:    a.modelName,
			Duration: elapsed,
		}
		if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
			outcome.PromptTokens = resp.ResponseMeta.Usage.PromptTokens
			outcome.CompletionTokens = resp.ResponseMeta.Usage.CompletionTokens
			metrics.AgentTokensUsed.WithLabelValues(string(a.role), a.provider, "prompt").Add(float64(outcome.PromptTokens))
			metrics.AgentTokensUsed.WithLabelValues(string(a.role), a.provider, "completion").Add(float64(outcome.CompletionTokens))
		}

		span.SetAttributes(
			attribute.Int("agent.prompt_tokens", outcome.PromptTokens),
			attribute.Int("agent.completion_tokens", outcome.CompletionTokens),
		)
		return outcome, nil
	}

	return nil, fmt.Errorf("agent %s exhausted %d retries: %w", a.role, a.retries, lastErr)
}

// waitForQuota 提供商限流检查，超限按瞬时错误处理
func (a *Agent) waitForQuota(ctx context.Context) error {
	if a.limiter == nil || a.rateLimit <= 0 {
		return nil
	}

	allowed, err := a.limiter.Allow(ctx, a.rateKey, a.rateLimit, a.rateWin)
	if err != nil {
		// 限流器故障时放行，不阻断生成
		logger.FromContext(ctx).Warn("rate limiter unavailable", "error", err)
		return nil
	}
	if !allowed {
		return &TransientError{Err: fmt.Errorf("provider %s rate limited", a.provider)}
	}
	return nil
}

func (a *Agent) backoffDuration(retryCount int) time.Duration {
	backoff := a.backoff.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * a.backoff.Multiplier)
		if backoff > a.backoff.Max {
			return a.backoff.Max
		}
	}
	return backoff
}
