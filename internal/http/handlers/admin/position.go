package admin

import (
	handlershared "github.com/bannerhub/internal/http/handlers/shared"
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePositionRequest 创建投放位请求
type CreatePositionRequest struct {
	Name       string `json:"name" binding:"required,max=120"`
	MaxBanners int    `json:"max_banners" binding:"required,min=1"`
}

// CreatePosition 创建投放位
func (h *Handler) CreatePosition(c *gin.Context) {
	var req CreatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.position_invalid", nil)
		return
	}
	position, err := h.PositionService.Create(service.CreatePositionInput{
		Name:       req.Name,
		MaxBanners: req.MaxBanners,
	})
	if err != nil {
		respondMappedError(c, err, handlershared.PositionErrorRules, "error.internal")
		return
	}
	response.Created(c, position)
}
