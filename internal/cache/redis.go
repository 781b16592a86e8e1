package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bannerhub/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "bh"
	pingTimeout      = 3 * time.Second
)

// 全局 Redis 连接，未启用时所有读写均为空操作
var (
	mu     sync.RWMutex
	client *redis.Client
	prefix = defaultKeyPrefix
)

// InitRedis 按配置连接 Redis 并探活，未启用时关闭缓存
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		UseClient(nil, "")
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping %s: %w", rdb.Options().Addr, err)
	}
	UseClient(rdb, cfg.Prefix)
	return nil
}

// UseClient 直接注入客户端，nil 表示关闭缓存
func UseClient(rdb *redis.Client, keyPrefix string) {
	mu.Lock()
	defer mu.Unlock()
	client = rdb
	prefix = strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
}

// Close 关闭并清空全局客户端
func Close() error {
	mu.Lock()
	rdb := client
	client = nil
	mu.Unlock()
	if rdb == nil {
		return nil
	}
	return rdb.Close()
}

// Enabled 缓存是否可用
func Enabled() bool {
	return Client() != nil
}

// Client 当前客户端，未启用时为 nil
func Client() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	return client
}

// GetJSON 读取并反序列化，未命中返回 false
func GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	rdb := Client()
	if rdb == nil {
		return false, nil
	}
	raw, err := rdb.Get(ctx, buildKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, json.Unmarshal(raw, dest)
}

// SetJSON 序列化写入，ttl 为 0 表示不过期
func SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	rdb := Client()
	if rdb == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, buildKey(key), payload, ttl).Err()
}

// Del 删除键
func Del(ctx context.Context, key string) error {
	rdb := Client()
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, buildKey(key)).Err()
}

func buildKey(key string) string {
	mu.RLock()
	p := prefix
	mu.RUnlock()
	if key = strings.TrimSpace(key); key == "" {
		return p
	}
	return p + ":" + key
}
