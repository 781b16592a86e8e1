package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bannerhub/internal/authz"
	"github.com/bannerhub/internal/config"
	handlershared "github.com/bannerhub/internal/http/handlers/shared"
	"github.com/bannerhub/internal/http/response"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"

// Authenticator 校验 Token 并返回调用方身份
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Actor, error)
}

// Enforcer 按用户、资源与动作判断权限
type Enforcer interface {
	EnforceUser(userID uint, obj, act string) (bool, error)
}

// maxRequestIDLength 透传的请求 ID 最大长度，超出时重新生成
const maxRequestIDLength = 64

// exposedHeaders 浏览器端需要读取的响应头
var exposedHeaders = strings.Join([]string{requestIDHeader, "Retry-After", "X-RateLimit-Remaining"}, ", ")

// CORSMiddleware 跨域中间件，预检请求直接返回 204
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization", "Cache-Control", "X-Requested-With", requestIDHeader}
	}
	methodsHeader := strings.Join(methods, ", ")
	headersHeader := strings.Join(headers, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		if origin := resolveAllowedOrigin(c.GetHeader("Origin"), origins, cfg.AllowCredentials); origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Headers", headersHeader)
		h.Set("Access-Control-Allow-Methods", methodsHeader)
		h.Set("Access-Control-Expose-Headers", exposedHeaders)
		if maxAge != "" {
			h.Set("Access-Control-Max-Age", maxAge)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// resolveAllowedOrigin 计算 Allow-Origin；通配且允许凭证时回显请求来源
func resolveAllowedOrigin(origin string, allowed []string, allowCredentials bool) string {
	for _, item := range allowed {
		if item != "*" {
			continue
		}
		if allowCredentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin == "" {
		return ""
	}
	for _, item := range allowed {
		if strings.EqualFold(item, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 透传或生成请求 ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 请求日志，5xx 记 error，4xx 记 warn，健康检查不记录
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.L()
	}
	sugar := log.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/health" {
			return
		}

		status := c.Writer.Status()
		fields := []interface{}{
			"request_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if userID, ok := c.Get(handlershared.ContextKeyUserID); ok {
			fields = append(fields, "user_id", userID)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		switch {
		case status >= http.StatusInternalServerError:
			sugar.Errorw("request", fields...)
		case status >= http.StatusBadRequest:
			sugar.Warnw("request", fields...)
		default:
			sugar.Infow("request", fields...)
		}
	}
}

// UserJWTAuthMiddleware 用户 JWT 鉴权中间件，通过后写入调用方身份
func UserJWTAuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			response.Unauthorized(c, handlershared.Message("error.unauthorized"))
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, handlershared.Message("error.unauthorized"))
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, handlershared.Message("error.invalid_token"))
			c.Abort()
			return
		}

		actor, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			key := "error.invalid_token"
			switch {
			case errors.Is(err, service.ErrUserDisabled):
				key = "error.user_disabled"
			case !service.IsAuthError(err):
				logger.Errorw("user_auth_failed", "request_id", c.GetString(requestIDKey), "error", err)
			}
			response.Unauthorized(c, handlershared.Message(key))
			c.Abort()
			return
		}

		handlershared.SetActor(c, actor)
		c.Next()
	}
}

// RBACMiddleware 按路由模板与请求方法做 casbin 鉴权
func RBACMiddleware(enforcer Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if enforcer == nil {
			logger.Errorw("rbac_service_unavailable")
			response.Unauthorized(c, handlershared.Message("error.unauthorized"))
			c.Abort()
			return
		}
		actor, ok := handlershared.GetActor(c)
		if !ok {
			c.Abort()
			return
		}
		userID := actor.ID

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := enforcer.EnforceUser(userID, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("rbac_enforce_failed",
				"user_id", userID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			response.Error(c, response.CodeInternal, handlershared.Message("error.internal"))
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("rbac_permission_denied",
				"user_id", userID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			response.Forbidden(c, handlershared.Message("error.forbidden"))
			c.Abort()
			return
		}

		c.Next()
	}
}
