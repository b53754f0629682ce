package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scribe-eye-go/internal/service"
)

// ProjectHandler 负责项目的增删改查。
type ProjectHandler struct {
	projectService service.ProjectService
}

// NewProjectHandler 创建一个新的 ProjectHandler 实例。
func NewProjectHandler(projectService service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

type projectRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	project, err := h.projectService.Create(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		fail(c, "CreateProject", err)
		return
	}
	respond(c, http.StatusCreated, "项目创建成功", project)
}

func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.List(c.Request.Context())
	if err != nil {
		fail(c, "ListProjects", err)
		return
	}
	respond(c, http.StatusOK, "获取项目列表成功", projects)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projectService.Get(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		fail(c, "GetProject", err)
		return
	}
	respond(c, http.StatusOK, "获取项目成功", project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	project, err := h.projectService.Update(c.Request.Context(), c.Param("projectId"), req.Title, req.Description)
	if err != nil {
		fail(c, "UpdateProject", err)
		return
	}
	respond(c, http.StatusOK, "项目更新成功", project)
}

// Delete 删除项目及其剧本、实体和向量。
func (h *ProjectHandler) Delete(c *gin.Context) {
	id := c.Param("projectId")
	if err := h.projectService.Delete(c.Request.Context(), id); err != nil {
		fail(c, "DeleteProject", err)
		return
	}
	respond(c, http.StatusOK, "项目 "+id+" 已删除", nil)
}
