package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scribe-eye-go/internal/service"
)

// EntityHandler 提供项目实体的查询接口。
type EntityHandler struct {
	entityService service.EntityService
}

func NewEntityHandler(entityService service.EntityService) *EntityHandler {
	return &EntityHandler{entityService: entityService}
}

// List 处理 GET /projects/:projectId/entities?type=character|location|event。
func (h *EntityHandler) List(c *gin.Context) {
	entities, err := h.entityService.List(c.Request.Context(), c.Param("projectId"), c.Query("type"))
	if err != nil {
		fail(c, "ListEntities", err)
		return
	}
	respond(c, http.StatusOK, "获取实体列表成功", entities)
}
