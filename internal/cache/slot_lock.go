package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSlotLockTimeout 等待投放位锁超时
var ErrSlotLockTimeout = errors.New("slot lock wait timeout")

const slotLockRetryInterval = 50 * time.Millisecond

// 仅当持有者令牌一致时释放
var releaseSlotLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// SlotLocker 基于 Redis SET NX PX 的投放位互斥锁
type SlotLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewSlotLocker 创建投放位锁
func NewSlotLocker(client *redis.Client, ttl, wait time.Duration) *SlotLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &SlotLocker{client: client, ttl: ttl, wait: wait}
}

func slotLockKey(positionID uint) string {
	return buildKey(fmt.Sprintf("lock:position:%d", positionID))
}

// Lock 获取投放位锁，返回释放函数
func (l *SlotLocker) Lock(ctx context.Context, positionID uint) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := slotLockKey(positionID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseSlotLockScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrSlotLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(slotLockRetryInterval):
		}
	}
}
