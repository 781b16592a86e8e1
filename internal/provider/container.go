package provider

import (
	"errors"

	"github.com/bannerhub/internal/authz"
	"github.com/bannerhub/internal/cache"
	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/queue"
	"github.com/bannerhub/internal/repository"
	"github.com/bannerhub/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	UserRepo     repository.UserRepository
	PositionRepo repository.PositionRepository
	BannerRepo   repository.BannerRepository

	// Infrastructure
	ImageStore service.ImageStore
	SlotLocker service.SlotLocker

	// Services
	AuthzService     *authz.Service
	AuthService      *service.AuthService
	EmailService     *service.EmailService
	UserService      *service.UserService
	PositionService  *service.PositionService
	BannerService    *service.BannerService
	LifecycleService *service.LifecycleService
}

// NewContainer 初始化容器，数据库需已由 models.InitDB 打开
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if models.DB == nil {
		return nil, errors.New("database not initialized")
	}

	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		return nil, err
	}

	return Build(cfg, models.DB, queueClient)
}

// Build 在指定数据库上组装仓库与服务
func Build(cfg *config.Config, db *gorm.DB, queueClient *queue.Client) (*Container, error) {
	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories(db)

	// 2. 初始化基础设施
	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	// 3. 初始化 Services
	if err := c.initServices(db); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.UserRepo = repository.NewUserRepository(db)
	c.PositionRepo = repository.NewPositionRepository(db)
	c.BannerRepo = repository.NewBannerRepository(db)
}

func (c *Container) initInfrastructure() error {
	images, err := service.NewImageStore(c.Config.Cloudinary, c.Config.Upload)
	if err != nil {
		logger.Errorw("provider_init_image_store_failed", "error", err)
		return err
	}
	c.ImageStore = images
	c.SlotLocker = service.NewSlotLocker(c.Config.Allocation.LockTTL(), c.Config.Allocation.LockWait())
	return nil
}

func (c *Container) initServices(db *gorm.DB) error {
	authzService, err := authz.NewService(db)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		return err
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		return err
	}

	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.AuthService = service.NewAuthService(c.Config, c.UserRepo, c.AuthzService)
	c.PositionService = service.NewPositionService(c.PositionRepo)
	c.BannerService = service.NewBannerService(c.BannerRepo, c.PositionRepo, c.ImageStore, c.SlotLocker, c.Config)
	c.UserService = service.NewUserService(c.UserRepo, c.AuthService, c.AuthzService, c.BannerService)
	c.LifecycleService = service.NewLifecycleService(c.BannerRepo, c.EmailService, c.ImageStore, c.Config.Lifecycle)
	return nil
}
