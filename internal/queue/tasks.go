package queue

import (
	"encoding/json"
	"time"

	"github.com/bannerhub/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskBannerWarnExpiring 到期提醒任务
	TaskBannerWarnExpiring = constants.TaskBannerWarnExpiring
	// TaskBannerDeleteExpired 过期清理任务
	TaskBannerDeleteExpired = constants.TaskBannerDeleteExpired
	// TaskBannerAutoRenew 自动续期任务
	TaskBannerAutoRenew = constants.TaskBannerAutoRenew
)

// LifecycleTaskTypes 生命周期任务，按执行顺序排列
var LifecycleTaskTypes = []string{
	TaskBannerWarnExpiring,
	TaskBannerDeleteExpired,
	TaskBannerAutoRenew,
}

// lifecycleUniqueTTL 同一任务一天内只入队一次
const lifecycleUniqueTTL = 23 * time.Hour

// LifecyclePayload 生命周期任务载荷
type LifecyclePayload struct {
	Trigger string `json:"trigger"`
}

// NewLifecycleTask 创建生命周期任务
func NewLifecycleTask(taskType string, payload LifecyclePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

// ParseLifecyclePayload 解析生命周期任务载荷，空载荷视为定时触发
func ParseLifecyclePayload(task *asynq.Task) (LifecyclePayload, error) {
	payload := LifecyclePayload{Trigger: "schedule"}
	if task == nil || len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LifecyclePayload{}, err
	}
	return payload, nil
}

// LifecycleTaskID 任务 ID 带日期，保证每天唯一
func LifecycleTaskID(taskType string, day time.Time) string {
	return taskType + ":" + day.Format("2006-01-02")
}
