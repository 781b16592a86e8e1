package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/bannerhub/internal/app"
	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const minSecretLength = 32

var weakSecretMarkers = []string{"change-me", "change-in-production", "your-secret-key"}

func main() {
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	fmt.Println("\033[1;36mBannerHub API\033[0m \033[2mbanner scheduling & slot allocation\033[0m")

	// .env 可选，环境变量优先级高于 config.yml
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	err := run(cfg, mode)
	_ = logger.Sync()
	if err != nil {
		logger.StdLogger().Fatalf("%v", err)
	}
}

func run(cfg *config.Config, rawMode string) error {
	mode, err := app.ParseMode(rawMode)
	if err != nil {
		return fmt.Errorf("启动参数错误: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	release := cfg.Server.Mode == "release"
	if err := checkSecret(cfg.JWT.SecretKey); err != nil {
		if release {
			return err
		}
		logger.Warnw("jwt_secret_weak", "error", err)
	}

	// 迁移并写入初始投放位
	if err := app.InitDatabase(cfg); err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	return app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	})
}

// checkSecret 生产环境必须配置足够长的随机密钥
func checkSecret(secret string) error {
	if len(secret) < minSecretLength {
		return fmt.Errorf("JWT secret 长度不足 %d", minSecretLength)
	}
	normalized := strings.ToLower(secret)
	for _, marker := range weakSecretMarkers {
		if strings.Contains(normalized, marker) {
			return errors.New("JWT secret 仍为默认值")
		}
	}
	return nil
}
