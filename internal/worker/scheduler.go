package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/logger"
	"github.com/bannerhub/internal/queue"
	"github.com/bannerhub/internal/service"

	"github.com/go-co-op/gocron/v2"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

// Scheduler 生命周期定时调度服务
type Scheduler interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NewScheduler 队列启用时由 asynq 调度入队，否则在进程内用 gocron 直接执行
func NewScheduler(cfg *config.Config, lifecycle *service.LifecycleService, client *queue.Client) (Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if !cfg.Lifecycle.Enabled {
		return nil, errors.New("lifecycle disabled")
	}
	if cfg.Queue.Enabled {
		return NewQueueScheduler(&cfg.Queue, cfg.Lifecycle, client)
	}
	if lifecycle == nil {
		return nil, errors.New("lifecycle service is nil")
	}
	return NewLocalScheduler(cfg.Lifecycle, lifecycle)
}

// NextRun 计算 cron 表达式在指定时区的下一次触发时间
func NextRun(spec string, from time.Time, loc *time.Location) (time.Time, error) {
	schedule, err := cron.ParseStandard(lifecycleCron(spec))
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return schedule.Next(from.In(loc)), nil
}

func lifecycleCron(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return constants.DefaultLifecycleCron
	}
	return spec
}

// QueueScheduler 基于 asynq.Scheduler 的周期入队
// 多实例部署时依赖任务唯一性保证每天只执行一次
type QueueScheduler struct {
	scheduler  *asynq.Scheduler
	client     *queue.Client
	spec       string
	location   *time.Location
	runOnStart bool
	entryIDs   []string
}

// NewQueueScheduler 创建队列调度器并注册三个生命周期任务
func NewQueueScheduler(queueCfg *config.QueueConfig, cfg config.LifecycleConfig, client *queue.Client) (*QueueScheduler, error) {
	if queueCfg == nil || !queueCfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	loc := cfg.Location()
	spec := lifecycleCron(cfg.Cron)
	scheduler := asynq.NewScheduler(queue.BuildRedisOpt(queueCfg), &asynq.SchedulerOpts{
		Location: loc,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				if errors.Is(err, asynq.ErrDuplicateTask) {
					logger.Debugw("scheduler_lifecycle_duplicate", "error", err)
					return
				}
				logger.Warnw("scheduler_lifecycle_enqueue_failed", "error", err)
				return
			}
			logger.Infow("scheduler_lifecycle_enqueued", "task", info.Type, "task_id", info.ID)
		},
	})

	s := &QueueScheduler{
		scheduler:  scheduler,
		client:     client,
		spec:       spec,
		location:   loc,
		runOnStart: cfg.RunOnStart,
	}
	for _, taskType := range queue.LifecycleTaskTypes {
		task, err := queue.NewLifecycleTask(taskType, queue.LifecyclePayload{Trigger: "schedule"})
		if err != nil {
			return nil, err
		}
		entryID, err := scheduler.Register(spec, task, queue.LifecycleTaskOptions(taskType, "")...)
		if err != nil {
			return nil, err
		}
		s.entryIDs = append(s.entryIDs, entryID)
	}
	return s, nil
}

// Name 服务名称
func (s *QueueScheduler) Name() string {
	return "scheduler"
}

// Start 启动调度并阻塞到 ctx 结束
func (s *QueueScheduler) Start(ctx context.Context) error {
	if s == nil || s.scheduler == nil {
		return errors.New("scheduler not initialized")
	}
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	if next, err := NextRun(s.spec, time.Now(), s.location); err == nil {
		logger.Infow("scheduler_lifecycle_started", "backend", "asynq", "cron", s.spec, "next_run", next)
	}
	if s.runOnStart && s.client.Enabled() {
		today := time.Now().In(s.location)
		for _, taskType := range queue.LifecycleTaskTypes {
			if err := s.client.EnqueueLifecycle(taskType, today, "startup"); err != nil {
				logger.Warnw("scheduler_lifecycle_startup_enqueue_failed", "task", taskType, "error", err)
			}
		}
	}
	<-ctx.Done()
	return nil
}

// Stop 停止调度
func (s *QueueScheduler) Stop(_ context.Context) error {
	if s == nil || s.scheduler == nil {
		return nil
	}
	s.scheduler.Shutdown()
	return nil
}

// LocalScheduler 未启用队列时的进程内调度
// Stop 取消进行中的执行并等待其退出
type LocalScheduler struct {
	scheduler  gocron.Scheduler
	lifecycle  *service.LifecycleService
	spec       string
	location   *time.Location
	runOnStart bool
	runCtx     context.Context
	cancelRuns context.CancelFunc
	runs       sync.WaitGroup
	stopOnce   sync.Once
}

// NewLocalScheduler 创建进程内调度器
func NewLocalScheduler(cfg config.LifecycleConfig, lifecycle *service.LifecycleService) (*LocalScheduler, error) {
	if lifecycle == nil {
		return nil, errors.New("lifecycle service is nil")
	}
	loc := cfg.Location()
	spec := lifecycleCron(cfg.Cron)
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	s := &LocalScheduler{
		scheduler:  scheduler,
		lifecycle:  lifecycle,
		spec:       spec,
		location:   loc,
		runOnStart: cfg.RunOnStart,
	}
	s.runCtx, s.cancelRuns = context.WithCancel(context.Background())
	_, err = scheduler.NewJob(
		gocron.CronJob(spec, false),
		gocron.NewTask(s.runOnce, "schedule"),
		gocron.WithName("banner_lifecycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.cancelRuns()
		_ = scheduler.Shutdown()
		return nil, err
	}
	return s, nil
}

// Name 服务名称
func (s *LocalScheduler) Name() string {
	return "scheduler"
}

// Start 启动调度并阻塞到 ctx 结束
func (s *LocalScheduler) Start(ctx context.Context) error {
	if s == nil || s.scheduler == nil {
		return errors.New("scheduler not initialized")
	}
	s.scheduler.Start()
	if next, err := NextRun(s.spec, time.Now(), s.location); err == nil {
		logger.Infow("scheduler_lifecycle_started", "backend", "gocron", "cron", s.spec, "next_run", next)
	}
	if s.runOnStart {
		s.runs.Add(1)
		go func() {
			defer s.runs.Done()
			s.runOnce("startup")
		}()
	}
	<-ctx.Done()
	return nil
}

// Stop 取消进行中的执行，停止调度并等待启动任务退出
func (s *LocalScheduler) Stop(ctx context.Context) error {
	if s == nil || s.scheduler == nil {
		return nil
	}
	var err error
	s.stopOnce.Do(func() {
		s.cancelRuns()
		err = s.scheduler.Shutdown()
		done := make(chan struct{})
		go func() {
			s.runs.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = errors.Join(err, ctx.Err())
		}
	})
	return err
}

func (s *LocalScheduler) runOnce(trigger string) {
	summary, err := s.lifecycle.RunAll(s.runCtx)
	if err != nil {
		logger.Warnw("scheduler_lifecycle_run_failed", "trigger", trigger, "error", err)
	}
	logger.Infow("scheduler_lifecycle_run_done",
		"trigger", trigger,
		"warn_expiring", summary.WarnExpiring,
		"delete_expired", summary.DeleteExpired,
		"auto_renew", summary.AutoRenew,
	)
}
