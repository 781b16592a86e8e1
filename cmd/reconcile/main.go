package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bannerhub/internal/app"
	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/provider"
	"github.com/bannerhub/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	var duty string
	flag.StringVar(&duty, "duty", "all", "执行的任务: all, warn_expiring, delete_expired, auto_renew")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := reconcile(ctx, cfg, duty, os.Stdout)
	cancel()
	_ = logger.Sync()
	if err != nil {
		logger.StdLogger().Fatalf("%v", err)
	}
}

// reconcile 初始化数据库与容器后执行一次任务并输出 JSON 报告
func reconcile(ctx context.Context, cfg *config.Config, duty string, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	if err := app.InitDatabase(cfg); err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	container, err := provider.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("容器初始化失败: %w", err)
	}
	result, err := run(ctx, container.LifecycleService, duty)
	if err != nil {
		return fmt.Errorf("生命周期任务失败: %w", err)
	}
	return writeReport(out, result)
}

func writeReport(out io.Writer, result interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func run(ctx context.Context, lifecycle *service.LifecycleService, duty string) (interface{}, error) {
	switch duty {
	case "all":
		return lifecycle.RunAll(ctx)
	case "warn_expiring":
		return lifecycle.WarnExpiring(ctx)
	case "delete_expired":
		return lifecycle.DeleteExpired(ctx)
	case "auto_renew":
		return lifecycle.AutoRenew(ctx)
	}
	return nil, fmt.Errorf("unknown duty %q", duty)
}
