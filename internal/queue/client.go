package queue

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bannerhub/internal/config"
	"github.com/bannerhub/internal/constants"
	"github.com/bannerhub/internal/logger"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 提醒类任务
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 会改动投放位占用的任务
	CriticalQueue = constants.QueueCritical

	defaultConcurrency = 10
	lifecycleMaxRetry  = 3
)

// Client asynq 客户端，未启用队列时所有入队为空操作
type Client struct {
	client *asynq.Client
}

// NewClient 按配置创建客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{client: asynq.NewClient(BuildRedisOpt(cfg))}, nil
}

func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// EnqueueLifecycle 推送当天的生命周期任务，重复推送视为成功
func (c *Client) EnqueueLifecycle(taskType string, day time.Time, trigger string) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewLifecycleTask(taskType, LifecyclePayload{Trigger: trigger})
	if err != nil {
		return err
	}
	taskID := LifecycleTaskID(taskType, day)
	info, err := c.client.Enqueue(task, LifecycleTaskOptions(taskType, taskID)...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Debugw("queue_lifecycle_already_enqueued", "task_id", taskID)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Infow("queue_lifecycle_enqueued", "task_id", info.ID, "queue", info.Queue, "trigger", trigger)
	return nil
}

// QueueFor 删除与续期改动占用走 critical，提醒走 default
func QueueFor(taskType string) string {
	switch taskType {
	case TaskBannerDeleteExpired, TaskBannerAutoRenew:
		return CriticalQueue
	}
	return DefaultQueue
}

// LifecycleTaskOptions 入队选项，taskID 为空时只靠 Unique 去重
func LifecycleTaskOptions(taskType, taskID string) []asynq.Option {
	opts := []asynq.Option{
		asynq.Queue(QueueFor(taskType)),
		asynq.MaxRetry(lifecycleMaxRetry),
		asynq.Unique(lifecycleUniqueTTL),
	}
	if taskID != "" {
		opts = append(opts, asynq.TaskID(taskID))
	}
	return opts
}

// BuildServerConfig worker 的连接与并发配置，未配置权重时两个队列都会消费
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	serverCfg := asynq.Config{
		Concurrency: defaultConcurrency,
		Queues:      map[string]int{CriticalQueue: 2, DefaultQueue: 1},
	}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			serverCfg.Concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			serverCfg.Queues = cfg.Queues
		}
	}
	return BuildRedisOpt(cfg), serverCfg
}

// BuildRedisOpt 队列使用的 Redis 连接参数
func BuildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
