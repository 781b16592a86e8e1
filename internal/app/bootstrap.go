package app

import (
	"errors"
	"net"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/models"
	"github.com/bannerhub/internal/provider"
	"github.com/bannerhub/internal/router"
	"github.com/bannerhub/internal/worker"
)

// InitDatabase 打开数据库、迁移表结构并写入初始投放位
func InitDatabase(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		return err
	}
	if err := models.AutoMigrate(); err != nil {
		return err
	}
	return models.SeedDefaultPositions(models.DB)
}

// EnsureAdmin 确保默认管理员存在并拥有 admin 角色
func EnsureAdmin(cfg *config.Config, c *provider.Container) error {
	if cfg == nil || c == nil || c.AuthzService == nil {
		return errors.New("container not initialized")
	}
	admin, err := models.EnsureDefaultAdmin(models.DB, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword)
	if err != nil {
		return err
	}
	hasRole, err := c.AuthzService.HasRole(admin.ID, constants.RoleAdmin)
	if err != nil {
		return err
	}
	if hasRole {
		return nil
	}
	if err := c.AuthzService.SetUserRoles(admin.ID, []string{constants.RoleAdmin}); err != nil {
		return err
	}
	logger.Infow("default_admin_role_granted", "user_id", admin.ID)
	return nil
}

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	mode, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	container, err := provider.NewContainer(cfg)
	if err != nil {
		return nil, err
	}
	if err := EnsureAdmin(cfg, container); err != nil {
		return nil, err
	}

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(net.JoinHostPort(cfg.Server.Host, cfg.Server.Port), engine))
	}

	if mode == ModeAll || mode == ModeWorker {
		// 初始化 Worker 服务（仅在启用队列时）
		if cfg.Queue.Enabled {
			consumer := worker.NewConsumer(container)
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else if mode == ModeWorker {
			logger.Warnw("app_worker_queue_disabled", "fallback", "local_scheduler")
		}

		// 生命周期调度：启用队列时由 asynq 调度，否则进程内执行
		if cfg.Lifecycle.Enabled {
			scheduler, err := worker.NewScheduler(cfg, container.LifecycleService, container.QueueClient)
			if err != nil {
				return nil, err
			}
			services = append(services, scheduler)
		}
	}

	// 如果没有服务被启动（例如模式错误或配置导致都没起），应该报错或至少打日志
	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
