package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-orchestrator/internal/infrastructure/persistence/postgres"
	"z-novel-orchestrator/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	pg    *postgres.Client
	redis *redis.Client
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(pg *postgres.Client, redis *redis.Client) *HealthHandler {
	return &HealthHandler{pg: pg, redis: redis}
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Health 存活探针
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Live 与 Health 等价，供 k8s liveness 探针使用
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready 就绪探针，检查 PostgreSQL 与 Redis 连通性
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	pgResult := h.runCheck(ctx, h.pg.HealthCheck)
	checks["postgres"] = pgResult
	if pgResult.Status != "ok" {
		healthy = false
	}

	redisResult := h.runCheck(ctx, h.redis.HealthCheck)
	checks["redis"] = redisResult
	if redisResult.Status != "ok" {
		healthy = false
	}

	status := http.StatusOK
	overall := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "not_ready"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"checks": checks,
	})
}

func (h *HealthHandler) runCheck(ctx context.Context, check func(context.Context) error) checkResult {
	start := time.Now()
	err := check(ctx)
	result := checkResult{
		Status:    "ok",
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Status = "error"
		result.Error = err.Error()
	}
	return result
}
