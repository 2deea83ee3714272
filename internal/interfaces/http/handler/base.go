// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-orchestrator/internal/interfaces/http/dto"
	"z-novel-orchestrator/pkg/errors"
	"z-novel-orchestrator/pkg/logger"
)

// writeError 将错误映射为统一的 HTTP 错误响应
// AppError 按其错误码映射状态码，其余错误一律按 500 处理
func writeError(c *gin.Context, err error) {
	if appErr := errors.AsAppError(err); appErr != nil {
		detail := &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		}
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
		return
	}
	logger.Error(c.Request.Context(), "unhandled handler error", err)
	dto.InternalError(c, "internal server error")
}
