// Package agent 提供多智能体 LLM 客户端
package agent

import (
	"context"
	"time"

	"z-novel-orchestrator/internal/config"
	"z-novel-orchestrator/internal/domain/entity"
	"z-novel-orchestrator/internal/infrastructure/llm"
	redisinfra "z-novel-orchestrator/internal/infrastructure/persistence/redis"
	"z-novel-orchestrator/pkg/logger"
)

// Registry Agent 团队注册表
// 配置缺失或密钥为空的角色不注册，调用方按降级模式处理
type Registry struct {
	agents map[entity.AgentRole]Completer
}

// NewRegistry 根据配置构建 Agent 团队
func NewRegistry(ctx context.Context, cfg *config.Config, factory *llm.EinoFactory, limiter *redisinfra.RateLimiter) (*Registry, error) {
	log := logger.FromContext(ctx)
	agents := make(map[entity.AgentRole]Completer)

	for _, role := range entity.AllAgentRoles() {
		roleCfg, ok := cfg.Agents.Roles[string(role)]
		if !ok {
			log.Warn("agent role not configured, running degraded", "role", role)
			continue
		}

		provider := roleCfg.Provider
		if provider == "" {
			provider = cfg.LLM.DefaultProvider
		}
		if !factory.HasProvider(provider) {
			log.Warn("agent role has no usable provider, running degraded",
				"role", role,
				"provider", provider,
			)
			continue
		}

		chat, err := factory.GetWithOverrides(ctx, provider, &roleCfg)
		if err != nil {
			return nil, err
		}

		modelName := roleCfg.Model
		if modelName == "" {
			modelName = cfg.LLM.Providers[provider].Model
		}

		var opts []AgentOption
		if limiter != nil && cfg.Security.RateLimit.Enabled {
			opts = append(opts, WithRateLimiter(limiter,
				cfg.Security.RateLimit.RequestsPerSecond, time.Second))
		}

		agents[role] = NewAgent(role, provider, modelName, chat,
			cfg.Generation.RetryBackoff, cfg.Generation.MaxRetries, opts...)
	}

	// 演示模式下缺失的 writer 用本地模板客户端补位
	if cfg.Features.DemoMode.Enabled {
		if _, ok := agents[entity.RoleWriter]; !ok {
			log.Info("demo mode enabled, using template writer")
			agents[entity.RoleWriter] = NewDemoWriter()
		}
	}

	return &Registry{agents: agents}, nil
}

// NewRegistryFromAgents 直接从客户端集合构建注册表（测试用）
func NewRegistryFromAgents(agents map[entity.AgentRole]Completer) *Registry {
	return &Registry{agents: agents}
}

// Get 获取角色客户端
func (r *Registry) Get(role entity.AgentRole) (Completer, bool) {
	a, ok := r.agents[role]
	return a, ok
}

// Has 检查角色是否可用
func (r *Registry) Has(role entity.AgentRole) bool {
	_, ok := r.agents[role]
	return ok
}

// Roles 返回可用角色列表
func (r *Registry) Roles() []entity.AgentRole {
	roles := make([]entity.AgentRole, 0, len(r.agents))
	for _, role := range entity.AllAgentRoles() {
		if _, ok := r.agents[role]; ok {
			roles = append(roles, role)
		}
	}
	return roles
}
