package service

import (
	"context"
	"sync"
	"time"

	"github.com/bannerhub/internal/cache"
)

// SlotLocker 投放位互斥锁，Lock 返回释放函数
type SlotLocker interface {
	Lock(ctx context.Context, positionID uint) (func(), error)
}

// LocalSlotLocker 进程内投放位锁，未启用 Redis 时使用
type LocalSlotLocker struct {
	mu    sync.Mutex
	slots map[uint]chan struct{}
	wait  time.Duration
}

// NewLocalSlotLocker 创建进程内投放位锁
func NewLocalSlotLocker(wait time.Duration) *LocalSlotLocker {
	return &LocalSlotLocker{slots: make(map[uint]chan struct{}), wait: wait}
}

func (l *LocalSlotLocker) slot(positionID uint) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[positionID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[positionID] = ch
	}
	return ch
}

// Lock 获取投放位锁，超过等待时间返回 cache.ErrSlotLockTimeout
func (l *LocalSlotLocker) Lock(ctx context.Context, positionID uint) (func(), error) {
	ch := l.slot(positionID)
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, cache.ErrSlotLockTimeout
		}
		return nil, ctx.Err()
	}
}

// NewSlotLocker Redis 可用时使用分布式锁，否则退化为进程内锁
func NewSlotLocker(ttl, wait time.Duration) SlotLocker {
	if cache.Enabled() {
		return cache.NewSlotLocker(cache.Client(), ttl, wait)
	}
	return NewLocalSlotLocker(wait)
}
