package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 生命周期任务消费者，由 Runner 通过 ctx 控制退出
type Service struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	stopOnce sync.Once
}

// NewService 创建消费服务，队列未启用时返回错误
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	serverCfg.Logger = logger.S()
	serverCfg.ErrorHandler = asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		logger.Warnw("worker_task_failed", "type", task.Type(), "retried", retried, "error", err)
	})

	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{server: asynq.NewServer(opt, serverCfg), mux: mux}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	return "worker"
}

// Start 启动消费并阻塞到 ctx 结束；信号由 Runner 统一处理
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("worker not initialized")
	}
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	logger.Infow("worker_started", "task_types", queue.LifecycleTaskTypes)
	<-ctx.Done()
	return nil
}

// Stop 等待进行中的任务结束后退出
func (s *Service) Stop(_ context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.stopOnce.Do(s.server.Shutdown)
	return nil
}
