package shared

import (
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 携带 request_id 与路由的日志实例
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	fields := []interface{}{"route", c.FullPath()}
	if id := c.GetString("request_id"); id != "" {
		fields = append(fields, "request_id", id)
	}
	return logger.SW(fields...)
}

// RespondError 按消息 key 返回错误；有原始错误时记录日志，5xx 记为 error
func RespondError(c *gin.Context, code int, key string, err error) {
	msg := Message(key)
	if err != nil {
		log := RequestLog(c)
		if code >= 500 {
			log.Errorw("handler_error", "code", code, "key", key, "error", err)
		} else {
			log.Debugw("handler_rejected", "code", code, "key", key, "error", err)
		}
	}
	response.Error(c, code, msg)
}
