package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"project-selector/backend/config"
)

// Client Redis 客户端封装
// 用于接口限流与求解回调的投递计数
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromClient 包装已有的 go-redis 客户端
func NewFromClient(rdb *goredis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ── 滑动窗口限流 ──

const rateLimitPrefix = "ratelimit:"

// CheckRateLimit 基于有序集合的滑动窗口限流
// 返回 true 表示允许本次请求
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	redisKey := rateLimitPrefix + key
	windowStart := now.Add(-window).UnixMicro()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	if card.Val() >= int64(limit) {
		return false, nil
	}

	pipe = c.rdb.TxPipeline()
	pipe.ZAdd(ctx, redisKey, goredis.Z{
		Score:  float64(now.UnixMicro()),
		Member: uuid.NewString(),
	})
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return true, nil
}

// ── 回调投递计数 ──

const (
	callbackAttemptPrefix = "callback:attempts:"
	callbackAttemptTTL    = 7 * 24 * time.Hour
)

// RecordCallbackAttempt 按结果累计某个异步任务收到的回调次数
// outcome 取值如 accepted / rejected / malformed
func (c *Client) RecordCallbackAttempt(ctx context.Context, deferredID, outcome string) error {
	key := callbackAttemptPrefix + deferredID

	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, outcome, 1)
	pipe.Expire(ctx, key, callbackAttemptTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// CallbackAttempts 读取某个异步任务的回调计数
func (c *Client) CallbackAttempts(ctx context.Context, deferredID string) (map[string]int64, error) {
	raw, err := c.rdb.HGetAll(ctx, callbackAttemptPrefix+deferredID).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(raw))
	for outcome, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.logger.Warn("回调计数格式异常", zap.String("deferred_id", deferredID), zap.String("value", v))
			continue
		}
		counts[outcome] = n
	}
	return counts, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
