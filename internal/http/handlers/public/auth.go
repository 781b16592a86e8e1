package public

import (
	"time"

	handlershared "github.com/bannerhub/internal/http/handlers/shared"
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Name     string `json:"name" binding:"omitempty,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse 登录/注册响应
type AuthResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

var authErrorRules = handlershared.ConcatRules(handlershared.AuthErrorRules, handlershared.UserErrorRules)

// Register 用户注册
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	user, token, expiresAt, err := h.AuthService.Register(service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondMappedError(c, err, authErrorRules, "error.internal")
		return
	}
	response.Created(c, AuthResponse{User: user, Token: token, ExpiresAt: expiresAt})
}

// Login 用户登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	user, token, expiresAt, err := h.AuthService.Login(req.Email, req.Password)
	if err != nil {
		respondMappedError(c, err, authErrorRules, "error.internal")
		return
	}
	response.Success(c, AuthResponse{User: user, Token: token, ExpiresAt: expiresAt})
}
