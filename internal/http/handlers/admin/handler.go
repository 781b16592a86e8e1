package admin

import (
	"github.com/bannerhub/internal/http/handlers/shared"
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/provider"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 管理端接口：用户、投放位与生命周期，路由层已限定 admin 角色
type Handler struct {
	*provider.Container
}

func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return shared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	shared.RespondError(c, code, key, err)
}

func respondMappedError(c *gin.Context, err error, rules []shared.MappedError, fallbackKey string) {
	shared.RespondMappedError(c, err, rules, response.CodeInternal, fallbackKey)
}
