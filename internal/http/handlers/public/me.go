package public

import (
	handlershared "github.com/bannerhub/internal/http/handlers/shared"
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateMeRequest 修改个人资料请求，roles/status 仅用于拒绝越权修改
type UpdateMeRequest struct {
	Name     *string  `json:"name" binding:"omitempty,max=120"`
	Email    *string  `json:"email" binding:"omitempty,email"`
	Password *string  `json:"password"`
	Status   *string  `json:"status"`
	Roles    []string `json:"roles"`
}

// ToServiceInput 转换为 service 层输入
func (r UpdateMeRequest) ToServiceInput() service.UpdateUserInput {
	return service.UpdateUserInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		Status:   r.Status,
		Roles:    r.Roles,
	}
}

// GetCurrentUser 当前用户与角色
func (h *Handler) GetCurrentUser(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	user, err := h.UserService.Me(actor)
	if err != nil {
		respondMappedError(c, err, handlershared.UserErrorRules, "error.user_fetch_failed")
		return
	}
	response.Success(c, user)
}

// UpdateMe 修改自己的资料
func (h *Handler) UpdateMe(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	user, err := h.UserService.UpdateSelf(actor, req.ToServiceInput())
	if err != nil {
		respondMappedError(c, err, handlershared.UserErrorRules, "error.internal")
		return
	}
	response.Success(c, user)
}

// DeleteMe 注销自己的账号
func (h *Handler) DeleteMe(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	if err := h.UserService.DeleteSelf(actor); err != nil {
		respondMappedError(c, err, handlershared.UserErrorRules, "error.internal")
		return
	}
	response.SuccessWithMsg(c, "deleted", nil)
}
