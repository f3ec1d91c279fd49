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

package dispatcher

import (
	"context"
	"time"

	"github.com/hanmo/hanmo/internal/dispatcher/internal/job"
	"github.com/hanmo/hanmo/internal/dispatcher/internal/pool"
	"github.com/hanmo/hanmo/internal/dispatcher/internal/ratelimit"
	"github.com/hanmo/hanmo/internal/dispatcher/internal/service"
	"github.com/redis/go-redis/v9"
)

type Module struct {
	Svc         *Service
	Pool        KeyPool
	Limiter     Limiter
	RecoveryJob *KeyRecoveryJob
}

// Config 调度中心配置项，对应配置文件 dispatcher 段。
type Config struct {
	// memory（内存，轻量部署）/ redis（分布式）
	StorageType string `yaml:"storageType"`
	// 最大并发数
	MaxConcurrent int `yaml:"maxConcurrent"`
	// 单任务失败后的重试次数
	RetryCount int `yaml:"retryCount"`
	// Key 池在 Redis 中的 key 名
	KeyPoolName string `yaml:"keyPoolName"`
	// 失败 Key 队列在 Redis 中的 key 名
	FailedKeyPoolName string `yaml:"failedKeyPoolName"`
	// Key 冷却时间（秒）。仅从配置读入，代码不使用；
	// 失败 Key 的恢复周期由 cron.recovery 的 spec 决定。
	KeyCooldownSeconds int `yaml:"keyCooldownSeconds"`
	// 滑动窗口限流的窗口大小（秒）
	RateLimitWindowSeconds int `yaml:"rateLimitWindowSeconds"`
	// 每个 Key 在窗口内的最大请求数
	RateLimitMaxRequests int `yaml:"rateLimitMaxRequests"`
	// 借用 Key 的超时时间（秒），单 Key 场景需足够长以等待前一个任务完成
	KeyBorrowTimeoutSeconds int `yaml:"keyBorrowTimeoutSeconds"`
	// 单次批改的最大任务数（超出截断）
	MaxCharactersPerBatch int `yaml:"maxCharactersPerBatch"`
}

func DefaultConfig() Config {
	return Config{
		StorageType:             "memory",
		MaxConcurrent:           15,
		RetryCount:              3,
		KeyPoolName:             "ai:key:pool",
		FailedKeyPoolName:       "ai:key:failed",
		KeyCooldownSeconds:      60,
		RateLimitWindowSeconds:  60,
		RateLimitMaxRequests:    50,
		KeyBorrowTimeoutSeconds: 120,
		MaxCharactersPerBatch:   30,
	}
}

// InitModule 按配置选择存储变体并组装调度模块。
// redis 变体要求传入非 nil 的客户端。
func InitModule(cfg Config, client redis.Cmdable) *Module {
	borrowTimeout := time.Duration(cfg.KeyBorrowTimeoutSeconds) * time.Second
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second

	var keyPool KeyPool
	var limiter Limiter
	switch cfg.StorageType {
	case "redis":
		keyPool = pool.NewRedisKeyPool(client, cfg.KeyPoolName, cfg.FailedKeyPoolName, borrowTimeout)
		limiter = ratelimit.NewRedisLimiter(client, window, cfg.RateLimitMaxRequests)
	default:
		keyPool = pool.NewMemoryKeyPool(borrowTimeout)
		limiter = ratelimit.NewMemoryLimiter(window, cfg.RateLimitMaxRequests)
	}

	svc := service.NewService(keyPool, limiter, cfg.MaxConcurrent, cfg.RetryCount, cfg.MaxCharactersPerBatch)
	return &Module{
		Svc:         svc,
		Pool:        keyPool,
		Limiter:     limiter,
		RecoveryJob: job.NewKeyRecoveryJob(keyPool),
	}
}

// DispatchAll 并发执行一批任务，结果与输入顺序一致，失败条目为零值。
func DispatchAll[T, R any](ctx context.Context, s *Service, items []T,
	runner func(ctx context.Context, item T, apiKey string) (R, error)) []R {
	return service.DispatchAll(ctx, s, items, runner)
}
