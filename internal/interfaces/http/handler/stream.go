package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-orchestrator/internal/application/progress"
	"z-novel-orchestrator/internal/interfaces/http/dto"
	"z-novel-orchestrator/pkg/logger"
)

// streamHeartbeatInterval SSE 心跳间隔，防止代理层断开空闲连接
const streamHeartbeatInterval = 15 * time.Second

// StreamHandler 进度事件实时推送处理器
type StreamHandler struct {
	bus *progress.Bus
}

// NewStreamHandler 创建推送处理器
func NewStreamHandler(bus *progress.Bus) *StreamHandler {
	return &StreamHandler{bus: bus}
}

// Stream 以 SSE 推送项目进度事件
// GET /v1/projects/:pid/events/stream?job_id=
//
// 只转发匹配项目（以及可选任务）的事件，连接断开时自动退订
func (h *StreamHandler) Stream(c *gin.Context) {
	projectID, err := dto.BindProjectID(c)
	if err != nil {
		writeError(c, err)
		return
	}
	jobID := c.Query("job_id")

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	ctx := c.Request.Context()
	logger.FromContext(ctx).Info("progress stream opened",
		"project_id", projectID, "job_id", jobID)

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			if event.ProjectID != projectID {
				return true
			}
			if jobID != "" && event.JobID != jobID {
				return true
			}
			c.SSEvent(string(event.Type), dto.ToEventResponse(event))
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"time": time.Now().Unix()})
			return true
		case <-ctx.Done():
			return false
		}
	})

	logger.FromContext(ctx).Info("progress stream closed", "project_id", projectID)
}
