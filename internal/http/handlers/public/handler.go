package public

import (
	"github.com/bannerhub/internal/http/handlers/shared"
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/provider"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler 认证、个人资料、投放位查询与 Banner 接口
type Handler struct {
	*provider.Container
}

func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func getActor(c *gin.Context) (service.Actor, bool) {
	return shared.GetActor(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	shared.RespondError(c, code, key, err)
}

func respondMappedError(c *gin.Context, err error, rules []shared.MappedError, fallbackKey string) {
	shared.RespondMappedError(c, err, rules, response.CodeInternal, fallbackKey)
}
