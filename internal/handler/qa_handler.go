package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"scribe-eye-go/internal/service"
	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/log"
)

// QAHandler 处理项目问答，包括普通 HTTP 请求和 WebSocket 流式请求。
type QAHandler struct {
	qaService service.QAService
	upgrader  websocket.Upgrader
}

// NewQAHandler 创建 QAHandler。allowedOrigins 为空时允许所有来源的 WebSocket 连接。
func NewQAHandler(qaService service.QAService, allowedOrigins []string) *QAHandler {
	return &QAHandler{
		qaService: qaService,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

type questionRequest struct {
	Question string `json:"question" binding:"required"`
}

// Ask 处理 POST /projects/:projectId/question。
func (h *QAHandler) Ask(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	result, err := h.qaService.Ask(c.Request.Context(), c.Param("projectId"), req.Question)
	if err != nil {
		fail(c, "AskQuestion", err)
		return
	}
	respond(c, http.StatusOK, "success", result)
}

// wsChunkWriter 把模型输出的每个分块包装成 {"chunk":"..."} 发给客户端。
type wsChunkWriter struct {
	conn *websocket.Conn
}

func (w *wsChunkWriter) WriteMessage(messageType int, data []byte) error {
	b, _ := json.Marshal(map[string]string{"chunk": string(data)})
	return w.conn.WriteMessage(messageType, b)
}

// Stream 处理 GET /projects/:projectId/question/stream。
// 连接建立后客户端每发送一条文本消息就视为一个问题，回答以分块形式推送，
// 结束时发送包含来源切块的 completion 消息。
func (h *QAHandler) Stream(c *gin.Context) {
	projectID := c.Param("projectId")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立, project_id=%s", projectID)

	writer := &wsChunkWriter{conn: conn}
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		result, err := h.qaService.AskStream(c.Request.Context(), projectID, string(message), writer)
		if err != nil {
			log.Errorf("处理流式问答失败: %v", err)
			writeJSON(conn, gin.H{
				"type":      "error",
				"errorCode": int(apperrors.CodeOf(err)),
				"message":   err.Error(),
			})
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return
			}
			continue
		}
		writeJSON(conn, gin.H{
			"type":          "completion",
			"status":        "finished",
			"answer":        result.Answer,
			"source_chunks": result.SourceChunks,
			"timestamp":     time.Now().UnixMilli(),
		})
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) {
	b, _ := json.Marshal(v)
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
