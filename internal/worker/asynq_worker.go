package worker

import (
	"context"
	"errors"

	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/provider"
	"github.com/bannerhub/internal/queue"
	"github.com/bannerhub/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskBannerWarnExpiring, c.handleWarnExpiring)
	mux.HandleFunc(queue.TaskBannerDeleteExpired, c.handleDeleteExpired)
	mux.HandleFunc(queue.TaskBannerAutoRenew, c.handleAutoRenew)
}

func (c *Consumer) handleWarnExpiring(ctx context.Context, task *asynq.Task) error {
	return c.runDuty(ctx, task, func(svc *service.LifecycleService) (service.LifecycleReport, error) {
		return svc.WarnExpiring(ctx)
	})
}

func (c *Consumer) handleDeleteExpired(ctx context.Context, task *asynq.Task) error {
	return c.runDuty(ctx, task, func(svc *service.LifecycleService) (service.LifecycleReport, error) {
		return svc.DeleteExpired(ctx)
	})
}

func (c *Consumer) handleAutoRenew(ctx context.Context, task *asynq.Task) error {
	return c.runDuty(ctx, task, func(svc *service.LifecycleService) (service.LifecycleReport, error) {
		return svc.AutoRenew(ctx)
	})
}

// runDuty 单条失败已在服务内隔离，只有查询失败才返回错误触发重试
func (c *Consumer) runDuty(_ context.Context, task *asynq.Task, duty func(*service.LifecycleService) (service.LifecycleReport, error)) error {
	if c == nil || c.Container == nil || c.LifecycleService == nil || task == nil {
		logger.Debugw("worker_lifecycle_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseLifecyclePayload(task)
	if err != nil {
		logger.Warnw("worker_lifecycle_unmarshal_failed", "task", task.Type(), "error", err)
		return errors.Join(err, asynq.SkipRetry)
	}
	report, err := duty(c.LifecycleService)
	if err != nil {
		logger.Warnw("worker_lifecycle_failed", "task", task.Type(), "trigger", payload.Trigger, "error", err)
		return err
	}
	logger.Infow("worker_lifecycle_done",
		"task", task.Type(),
		"trigger", payload.Trigger,
		"candidates", report.Candidates,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return nil
}
