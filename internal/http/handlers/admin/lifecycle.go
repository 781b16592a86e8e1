package admin

import (
	"github.com/bannerhub/internal/http/response"

	"github.com/gin-gonic/gin"
)

// RunLifecycle 同步执行到期提醒、过期清理与自动续期
func (h *Handler) RunLifecycle(c *gin.Context) {
	summary, err := h.LifecycleService.RunAll(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.lifecycle_failed", err)
		return
	}
	requestLog(c).Infow("admin_lifecycle_run",
		"warn_expiring", summary.WarnExpiring,
		"delete_expired", summary.DeleteExpired,
		"auto_renew", summary.AutoRenew,
	)
	response.Success(c, summary)
}
