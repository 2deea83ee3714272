// Package llm 提供 LLM 客户端工厂
package llm

import (
	"context"
	"fmt"
	"sync"

	"z-novel-orchestrator/internal/config"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// EinoFactory 管理多个 Eino ChatModel 客户端实例
// 同一提供商可按角色派生不同模型与采样参数的实例
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定提供商的 ChatModel，如果未指定则返回默认客户端
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	return f.GetWithOverrides(ctx, name, nil)
}

// GetWithOverrides 获取提供商 ChatModel，并应用角色级的模型与参数覆盖
func (f *EinoFactory) GetWithOverrides(ctx context.Context, name string, role *config.AgentRoleConfig) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	modelName := providerCfg.Model
	temperature := providerCfg.Temperature
	maxTokens := providerCfg.MaxTokens
	if role != nil {
		if role.Model != "" {
			modelName = role.Model
		}
		if role.Temperature > 0 {
			temperature = role.Temperature
		}
		if role.MaxTokens > 0 {
			maxTokens = role.MaxTokens
		}
	}

	key := fmt.Sprintf("%s/%s/%.2f/%d", name, modelName, temperature, maxTokens)

	f.mu.RLock()
	m, ok := f.models[key]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[key]; ok {
		return m, nil
	}

	// 使用 Eino 的 OpenAI 适配器
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       modelName,
		MaxTokens:   &maxTokens,
		Temperature: ptrFloat32(float32(temperature)),
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[key] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

// HasProvider 检查提供商是否已配置且携带密钥
func (f *EinoFactory) HasProvider(name string) bool {
	cfg, ok := f.config.Providers[name]
	return ok && cfg.APIKey != ""
}

func ptrFloat32(f float32) *float32 {
	return &f
}
