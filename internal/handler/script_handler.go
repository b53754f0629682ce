package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scribe-eye-go/internal/service"
)

// ScriptHandler 负责剧本的增删改查。创建和更新会触发后台的向量同步与实体抽取。
type ScriptHandler struct {
	scriptService service.ScriptService
}

// NewScriptHandler 创建一个新的 ScriptHandler 实例。
func NewScriptHandler(scriptService service.ScriptService) *ScriptHandler {
	return &ScriptHandler{scriptService: scriptService}
}

type scriptRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

func (h *ScriptHandler) Create(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	script, err := h.scriptService.Create(c.Request.Context(), c.Param("projectId"), req.Title, req.Content)
	if err != nil {
		fail(c, "CreateScript", err)
		return
	}
	respond(c, http.StatusCreated, "剧本创建成功，已提交后台处理", script)
}

func (h *ScriptHandler) ListByProject(c *gin.Context) {
	scripts, err := h.scriptService.ListByProject(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		fail(c, "ListScripts", err)
		return
	}
	respond(c, http.StatusOK, "获取剧本列表成功", scripts)
}

func (h *ScriptHandler) Get(c *gin.Context) {
	script, err := h.scriptService.Get(c.Request.Context(), c.Param("scriptId"))
	if err != nil {
		fail(c, "GetScript", err)
		return
	}
	respond(c, http.StatusOK, "获取剧本成功", script)
}

func (h *ScriptHandler) Update(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	script, err := h.scriptService.Update(c.Request.Context(), c.Param("scriptId"), req.Title, req.Content)
	if err != nil {
		fail(c, "UpdateScript", err)
		return
	}
	respond(c, http.StatusOK, "剧本更新成功，已提交后台处理", script)
}

func (h *ScriptHandler) Delete(c *gin.Context) {
	id := c.Param("scriptId")
	if err := h.scriptService.Delete(c.Request.Context(), id); err != nil {
		fail(c, "DeleteScript", err)
		return
	}
	respond(c, http.StatusOK, "剧本 "+id+" 已删除", nil)
}
