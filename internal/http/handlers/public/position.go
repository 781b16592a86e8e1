package public

import (
	"github.com/bannerhub/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetPositions 公开接口：投放位列表
func (h *Handler) GetPositions(c *gin.Context) {
	positions, err := h.PositionService.List()
	if err != nil {
		respondError(c, response.CodeInternal, "error.position_fetch_failed", err)
		return
	}
	response.Success(c, positions)
}
