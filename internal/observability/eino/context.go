// Package eino 提供 Eino 框架的全局可观测性 callbacks
package eino

import "context"

type providerKey struct{}

// WithProvider 在 Context 中标记当前调用的 LLM 提供商
// callback 无法从 Eino 回调参数里拿到提供商，由调用方注入
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey{}, provider)
}

// ProviderFromContext 读取当前调用的 LLM 提供商，未标记时返回 unknown
func ProviderFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
