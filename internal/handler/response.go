// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/log"
)

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    data,
	})
}

// fail 把错误按错误码转换成 HTTP 状态码，5xx 错误记录日志。
func fail(c *gin.Context, op string, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatusCode()
	message := err.Error()
	if appErr := apperrors.GetAppError(err); appErr != nil {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %v", op, err)
	}
	c.JSON(status, gin.H{
		"code":      status,
		"errorCode": int(code),
		"message":   message,
		"data":      nil,
	})
}

func badRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, message, nil)
}
