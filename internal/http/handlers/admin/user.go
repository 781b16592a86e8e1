package admin

import (
	"strings"

	handlershared "github.com/bannerhub/internal/http/handlers/shared"
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/repository"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateUserRequest 管理员创建用户请求
type CreateUserRequest struct {
	Name     string   `json:"name" binding:"omitempty,max=120"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required"`
	Roles    []string `json:"roles" binding:"omitempty,dive,role_name"`
}

// UpdateUserRequest 管理员修改用户请求
type UpdateUserRequest struct {
	Name     *string  `json:"name" binding:"omitempty,max=120"`
	Email    *string  `json:"email" binding:"omitempty,email"`
	Password *string  `json:"password"`
	Status   *string  `json:"status" binding:"omitempty,oneof=active disabled"`
	Roles    []string `json:"roles" binding:"omitempty,dive,role_name"`
}

// CreateUser 创建用户
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	user, err := h.UserService.Create(service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Roles:    req.Roles,
	})
	if err != nil {
		respondMappedError(c, err, handlershared.UserErrorRules, "error.internal")
		return
	}
	response.Created(c, user)
}

// ListUsers 用户分页列表
func (h *Handler) ListUsers(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	users, total, err := h.UserService.List(repository.UserListFilter{
		Page:     page,
		PageSize: pageSize,
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.user_fetch_failed", err)
		return
	}
	response.SuccessWithPage(c, users, handlershared.BuildPagination(page, pageSize, total))
}

// GetUser 按 ID 或邮箱查询用户
func (h *Handler) GetUser(c *gin.Context) {
	user, err := h.UserService.Get(c.Param("term"))
	if err != nil {
		respondMappedError(c, err, handlershared.UserErrorRules, "error.user_fetch_failed")
		return
	}
	response.Success(c, user)
}

// UpdateUser 修改其他用户
func (h *Handler) UpdateUser(c *gin.Context) {
	actor, ok := handlershared.GetActor(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	user, err := h.UserService.UpdateByAdmin(actor, c.Param("term"), service.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Status:   req.Status,
		Roles:    req.Roles,
	})
	if err != nil {
		respondMappedError(c, err, handlershared.UserErrorRules, "error.internal")
		return
	}
	requestLog(c).Infow("admin_user_updated", "admin_id", actor.ID, "user_id", user.ID)
	response.Success(c, user)
}

// DeleteUser 删除其他用户及其 Banner
func (h *Handler) DeleteUser(c *gin.Context) {
	actor, ok := handlershared.GetActor(c)
	if !ok {
		return
	}
	term := c.Param("term")
	if err := h.UserService.DeleteByAdmin(actor, term); err != nil {
		respondMappedError(c, err, handlershared.UserErrorRules, "error.internal")
		return
	}
	requestLog(c).Infow("admin_user_deleted", "admin_id", actor.ID, "term", term)
	response.SuccessWithMsg(c, "deleted", nil)
}
