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

package pool

import (
	"context"
	"errors"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/redis/go-redis/v9"
)

var _ KeyPool = (*RedisKeyPool)(nil)

// RedisKeyPool 基于 Redis List 的共享 Key 池，多实例部署时所有实例共用。
type RedisKeyPool struct {
	client        redis.Cmdable
	poolName      string
	failedName    string
	borrowTimeout time.Duration
	logger        *elog.Component
}

func NewRedisKeyPool(client redis.Cmdable, poolName, failedName string, borrowTimeout time.Duration) *RedisKeyPool {
	return &RedisKeyPool{
		client:        client,
		poolName:      poolName,
		failedName:    failedName,
		borrowTimeout: borrowTimeout,
		logger:        elog.DefaultLogger.With(elog.FieldComponent("RedisKeyPool")),
	}
}

func (p *RedisKeyPool) Borrow(ctx context.Context) (string, error) {
	res, err := p.client.BLPop(ctx, p.borrowTimeout, p.poolName).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded) {
			p.logger.Error("BLPOP 失败", elog.FieldErr(err))
		}
		return "", ErrPoolExhausted
	}
	// BLPOP 返回 [list, element]
	key := res[1]
	p.logger.Debug("借出 Key", elog.String("key", MaskKey(key)))
	return key, nil
}

func (p *RedisKeyPool) Return(key string) {
	p.rpush(p.poolName, key)
	p.logger.Debug("归还 Key", elog.String("key", MaskKey(key)))
}

func (p *RedisKeyPool) MarkFailed(key string) {
	p.rpush(p.failedName, key)
	p.logger.Warn("Key 标记为失败", elog.String("key", MaskKey(key)))
}

func (p *RedisKeyPool) AddKey(key string) {
	p.rpush(p.poolName, key)
	p.logger.Info("添加新 Key 到池", elog.String("key", MaskKey(key)))
}

func (p *RedisKeyPool) AddKeys(keys []string) {
	for _, key := range keys {
		p.rpush(p.poolName, key)
	}
	p.logger.Info("批量添加 Key", elog.Int("count", len(keys)))
}

func (p *RedisKeyPool) AvailableCount() int64 {
	cnt, err := p.client.LLen(context.Background(), p.poolName).Result()
	if err != nil {
		return 0
	}
	return cnt
}

func (p *RedisKeyPool) FailedCount() int64 {
	cnt, err := p.client.LLen(context.Background(), p.failedName).Result()
	if err != nil {
		return 0
	}
	return cnt
}

func (p *RedisKeyPool) RecoverFailedKeys() int {
	ctx := context.Background()
	recovered := 0
	for {
		key, err := p.client.LPop(ctx, p.failedName).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				p.logger.Error("恢复失败 Key 时读取失败队列出错", elog.FieldErr(err))
			}
			break
		}
		p.rpush(p.poolName, key)
		recovered++
	}
	if recovered > 0 {
		p.logger.Info("恢复失败 Key", elog.Int("recovered", recovered))
	}
	return recovered
}

func (p *RedisKeyPool) rpush(list, key string) {
	if err := p.client.RPush(context.Background(), list, key).Err(); err != nil {
		p.logger.Error("RPUSH 失败", elog.String("list", list), elog.FieldErr(err))
	}
}
