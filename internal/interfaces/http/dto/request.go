// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"z-novel-orchestrator/pkg/errors"
)

// PageRequest 分页请求参数
type PageRequest struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// Normalize 规范化分页参数
func (r *PageRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 20
	}
	if r.PageSize > 100 {
		r.PageSize = 100
	}
}

// BindPage 从查询参数绑定分页
func BindPage(c *gin.Context) PageRequest {
	req := PageRequest{
		Page:     parseIntWithDefault(c.Query("page"), 1),
		PageSize: parseIntWithDefault(c.Query("page_size"), 20),
	}
	req.Normalize()
	return req
}

// BindProjectID 从路径参数获取项目 ID
func BindProjectID(c *gin.Context) (string, error) {
	id := c.Param("pid")
	if id == "" {
		return "", errors.ErrInvalidParam.WithDetail("project id is required")
	}
	return id, nil
}

// BindJobID 从路径参数获取任务 ID
func BindJobID(c *gin.Context) (string, error) {
	id := c.Param("jid")
	if id == "" {
		return "", errors.ErrInvalidParam.WithDetail("job id is required")
	}
	return id, nil
}

// BindChapterSeq 从路径参数获取章节序号
func BindChapterSeq(c *gin.Context) (int, error) {
	raw := c.Param("seq")
	seq, err := strconv.Atoi(raw)
	if err != nil || seq < 1 {
		return 0, errors.ErrInvalidParam.WithDetail("chapter seq must be a positive integer")
	}
	return seq, nil
}

func parseIntWithDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
