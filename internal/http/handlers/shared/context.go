package shared

import (
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
)

// 认证中间件写入上下文的键
const (
	ContextKeyUserID = "user_id"
	ContextKeyActor  = "actor"
)

// SetActor 写入调用方身份，user_id 单独保存供访问日志使用
func SetActor(c *gin.Context, actor *service.Actor) {
	if c == nil || actor == nil {
		return
	}
	c.Set(ContextKeyActor, *actor)
	c.Set(ContextKeyUserID, actor.ID)
}

// GetActor 读取调用方身份，缺失或无效时写入 401 并返回 false
func GetActor(c *gin.Context) (service.Actor, bool) {
	if value, exists := c.Get(ContextKeyActor); exists {
		if actor, ok := value.(service.Actor); ok && actor.ID != 0 {
			return actor, true
		}
	}
	RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
	return service.Actor{}, false
}
