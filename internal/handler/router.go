package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scribe-eye-go/internal/middleware"
)

// Handlers 汇总所有需要注册路由的 handler。
type Handlers struct {
	Project *ProjectHandler
	Script  *ScriptHandler
	Entity  *EntityHandler
	QA      *QAHandler
}

// NewRouter 创建 gin 引擎并注册 /api/v1 下的全部路由。
func NewRouter(h Handlers, allowedOrigins []string) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestID(), middleware.RequestLogger(), gin.Recovery(), middleware.CORS(allowedOrigins))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		projects := apiV1.Group("/projects")
		{
			projects.GET("", h.Project.List)
			projects.POST("", h.Project.Create)
			projects.GET("/:projectId", h.Project.Get)
			projects.PUT("/:projectId", h.Project.Update)
			projects.DELETE("/:projectId", h.Project.Delete)

			projects.GET("/:projectId/scripts", h.Script.ListByProject)
			projects.POST("/:projectId/scripts", h.Script.Create)

			projects.GET("/:projectId/entities", h.Entity.List)

			projects.POST("/:projectId/question", h.QA.Ask)
			projects.GET("/:projectId/question/stream", h.QA.Stream)
		}

		scripts := apiV1.Group("/scripts")
		{
			scripts.GET("/:scriptId", h.Script.Get)
			scripts.PUT("/:scriptId", h.Script.Update)
			scripts.DELETE("/:scriptId", h.Script.Delete)
		}
	}
	return r
}
