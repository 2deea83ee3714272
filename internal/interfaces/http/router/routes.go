package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 API 路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	projects := v1.Group("/projects")
	{
		projects.POST("", h.Project.Create)
		projects.GET("", h.Project.List)
		projects.GET("/:pid", h.Project.Get)
		projects.PATCH("/:pid", h.Project.Update)
		projects.DELETE("/:pid", h.Project.Archive)
		projects.GET("/:pid/stats", h.Project.Stats)

		projects.POST("/:pid/generation", h.Generation.Start)
		projects.POST("/:pid/generation/cancel", h.Generation.Cancel)
		projects.GET("/:pid/jobs", h.Generation.ListJobs)
		projects.GET("/:pid/jobs/stats", h.Generation.JobStats)

		projects.GET("/:pid/chapters", h.Chapter.List)
		projects.GET("/:pid/chapters/:seq", h.Chapter.Get)

		projects.GET("/:pid/events", h.Event.ListByProject)
		projects.GET("/:pid/events/search", h.Event.SearchByTags)
		projects.GET("/:pid/events/stream", h.Stream.Stream)
	}

	jobs := v1.Group("/jobs")
	{
		jobs.GET("/:jid", h.Generation.GetJob)
		jobs.GET("/:jid/events", h.Event.ListByJob)
	}
}
