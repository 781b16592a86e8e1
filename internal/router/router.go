package router

import (
	"strings"

	"github.com/bannerhub/internal/cache"
	"github.com/bannerhub/internal/config"
	adminhandlers "github.com/bannerhub/internal/http/handlers/admin"
	publichandlers "github.com/bannerhub/internal/http/handlers/public"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	if err := RegisterValidators(); err != nil {
		logger.Warnw("router_validators_unavailable", "error", err)
	}
	r := gin.New()
	if cfg.Upload.MaxSize > 0 {
		r.MaxMultipartMemory = cfg.Upload.MaxSize + 1<<20
	}

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	loginRule := LoginRateLimitRule(cfg)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 本地图床的静态文件
	if !cfg.Cloudinary.Enabled {
		localDir := strings.TrimSpace(cfg.Upload.LocalDir)
		if localDir == "" {
			localDir = "uploads"
		}
		r.Static("/uploads", localDir)
	}

	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/banners/active", publicHandler.GetActiveBanners)
			public.GET("/positions", publicHandler.GetPositions)
		}

		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(cache.Client(), loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}

		// 需鉴权的接口，权限由 casbin 按路由模板判断
		authorized := apiV1.Group("")
		authorized.Use(UserJWTAuthMiddleware(c.AuthService), RBACMiddleware(c.AuthzService))
		{
			authorized.GET("/me", publicHandler.GetCurrentUser)

			// 用户
			authorized.PATCH("/users/me", publicHandler.UpdateMe)
			authorized.DELETE("/users/me", publicHandler.DeleteMe)
			authorized.POST("/users", adminHandler.CreateUser)
			authorized.GET("/users", adminHandler.ListUsers)
			authorized.GET("/users/:term", adminHandler.GetUser)
			authorized.PATCH("/users/:term", adminHandler.UpdateUser)
			authorized.DELETE("/users/:term", adminHandler.DeleteUser)

			// Banner
			authorized.POST("/banners", publicHandler.CreateBanner)
			authorized.GET("/banners", publicHandler.ListBanners)
			authorized.GET("/banners/:id", publicHandler.GetBanner)
			authorized.PATCH("/banners/:id", publicHandler.UpdateBanner)
			authorized.DELETE("/banners/:id", publicHandler.DeleteBanner)

			// 投放位
			authorized.POST("/positions", adminHandler.CreatePosition)

			// 管理
			authorized.POST("/admin/lifecycle/run", adminHandler.RunLifecycle)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
