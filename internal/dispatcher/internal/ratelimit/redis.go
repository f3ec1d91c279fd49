// Copyright 2023 ecodeclub
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// 区分同一毫秒内不同 goroutine 写入的成员
var memberSeq atomic.Int64

var _ Limiter = (*RedisLimiter)(nil)

// RedisLimiter 基于 Redis ZSET 的滑动窗口限流器，多实例共享计数。
type RedisLimiter struct {
	client      redis.Cmdable
	window      time.Duration
	maxRequests int
	logger      *elog.Component
}

func NewRedisLimiter(client redis.Cmdable, window time.Duration, maxRequests int) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		window:      window,
		maxRequests: maxRequests,
		logger:      elog.DefaultLogger.With(elog.FieldComponent("RedisLimiter")),
	}
}

func (l *RedisLimiter) TryAcquire(key string) bool {
	ctx := context.Background()
	redisKey := rateLimitPrefix + Fingerprint(key)
	now := time.Now().UnixMilli()
	windowStart := now - l.window.Milliseconds()

	l.client.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))

	count, err := l.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		l.logger.Error("ZCARD 失败", elog.FieldErr(err))
		// Redis 故障时放行，限流只是保护措施
		return true
	}
	if count >= int64(l.maxRequests) {
		l.logger.Debug("Key 已达速率限制",
			elog.String("key", mask(key)),
			elog.Int64("used", count),
			elog.Int("max", l.maxRequests))
		return false
	}

	member := fmt.Sprintf("%d:%d", now, memberSeq.Add(1))
	l.client.ZAdd(ctx, redisKey, redis.Z{Score: float64(now), Member: member})
	l.client.Expire(ctx, redisKey, l.window+10*time.Second)
	return true
}

func (l *RedisLimiter) RemainingQuota(key string) int64 {
	ctx := context.Background()
	redisKey := rateLimitPrefix + Fingerprint(key)
	windowStart := time.Now().UnixMilli() - l.window.Milliseconds()
	l.client.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	count, err := l.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return 0
	}
	remaining := int64(l.maxRequests) - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
