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

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/hanmo/hanmo/internal/dispatcher/internal/pool"
	"github.com/hanmo/hanmo/internal/dispatcher/internal/ratelimit"
	"golang.org/x/sync/semaphore"
)

// ErrTaskFailed 重试次数用尽后任务仍未成功。
var ErrTaskFailed = errors.New("AI 调用在多次尝试后仍然失败")

// 限流中归还 Key 后的等待时长
const rateLimitBackoff = time.Second

// Service 并发调度服务：Key 池 + 限流 + 重试串成一次可靠的 AI 调用。
//
// 核心策略：
//   - 信号量控制并发数，确保同一时刻运行的任务数不超过可用 Key 数
//   - 任务排队等待而非抢占失败，适配单 Key / 少 Key 场景
type Service struct {
	keyPool       pool.KeyPool
	limiter       ratelimit.Limiter
	maxConcurrent int
	retryCount    int
	// 单批任务数上限，超出截断
	maxBatch int
	logger   *elog.Component

	// 测试注入，缩短重试等待
	sleep func(ctx context.Context, d time.Duration)
}

func NewService(keyPool pool.KeyPool, limiter ratelimit.Limiter, maxConcurrent, retryCount, maxBatch int) *Service {
	return &Service{
		keyPool:       keyPool,
		limiter:       limiter,
		maxConcurrent: maxConcurrent,
		retryCount:    retryCount,
		maxBatch:      maxBatch,
		logger:        elog.DefaultLogger.With(elog.FieldComponent("Dispatcher")),
		sleep:         sleepCtx,
	}
}

// DispatchAll 并发执行一批任务，每个任务自动借/还 Key。
// 结果与输入顺序一致，失败的条目为对应类型的零值。
func DispatchAll[T, R any](ctx context.Context, s *Service, items []T,
	runner func(ctx context.Context, item T, apiKey string) (R, error)) []R {
	if s.maxBatch > 0 && len(items) > s.maxBatch {
		s.logger.Warn("批量任务超出上限，截断",
			elog.Int("submitted", len(items)),
			elog.Int("max", s.maxBatch))
		items = items[:s.maxBatch]
	}
	total := len(items)
	keyCount := int(s.keyPool.AvailableCount())
	if keyCount < 1 {
		keyCount = 1
	}
	concurrency := min(keyCount, s.maxConcurrent, total)
	if concurrency < 1 {
		concurrency = 1
	}

	s.logger.Info("开始并发调度",
		elog.Int("tasks", total),
		elog.Int("availableKeys", keyCount),
		elog.Int("concurrency", concurrency))

	sem := semaphore.NewWeighted(int64(concurrency))
	results := make([]R, total)
	var completed, succeeded atomic.Int32
	var wg sync.WaitGroup

	for idx, item := range items {
		wg.Add(1)
		go func(idx int, item T) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				s.logger.Warn("等待调度时被取消", elog.Int("task", idx))
				completed.Add(1)
				return
			}
			defer sem.Release(1)

			err := s.ExecuteWithRetry(ctx, func(ctx context.Context, apiKey string) error {
				res, err := runner(ctx, item, apiKey)
				if err != nil {
					return err
				}
				results[idx] = res
				return nil
			})
			if err != nil {
				s.logger.Warn("任务最终失败", elog.Int("task", idx), elog.FieldErr(err))
			} else {
				succeeded.Add(1)
			}

			done := completed.Add(1)
			if done%5 == 0 || int(done) == total {
				s.logger.Info("批改进度",
					elog.Int("done", int(done)),
					elog.Int("total", total),
					elog.Int("succeeded", int(succeeded.Load())))
			}
		}(idx, item)
	}
	wg.Wait()

	s.logger.Info("并发调度完成",
		elog.Int("succeeded", int(succeeded.Load())),
		elog.Int("total", total))
	return results
}

// ExecuteWithRetry 带重试的单任务执行：借 Key → 执行 → 成功归还 / 失败标记。
// Key 池耗尽只等待重借，不标记失败；其它错误视为 Key 或上游异常。
func (s *Service) ExecuteWithRetry(ctx context.Context, run func(ctx context.Context, apiKey string) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.retryCount; attempt++ {
		key, err := s.BorrowWithRate(ctx)
		if err != nil {
			s.logger.Debug("Key 暂时不可用，等待后重试", elog.Int("attempt", attempt+1))
			lastErr = err
			s.sleep(ctx, time.Duration(attempt+1)*2000*time.Millisecond)
			continue
		}

		if err = run(ctx, key); err == nil {
			s.keyPool.Return(key)
			keyReturns.Inc()
			return nil
		}

		s.logger.Warn("AI 调用失败",
			elog.Int("attempt", attempt+1),
			elog.Int("maxAttempts", s.retryCount+1),
			elog.FieldErr(err))
		lastErr = err
		s.keyPool.MarkFailed(key)
		keyFailures.Inc()
		s.sleep(ctx, time.Duration(attempt+1)*1000*time.Millisecond)
	}
	return fmt.Errorf("%w: %v", ErrTaskFailed, lastErr)
}

// BorrowWithRate 借出 Key 并确保未超过速率限制。
// 连续 3 次都撞上限流就按池耗尽处理，交给外层退避。
func (s *Service) BorrowWithRate(ctx context.Context) (string, error) {
	const maxAttempts = 3
	for i := 0; i < maxAttempts; i++ {
		key, err := s.keyPool.Borrow(ctx)
		if err != nil {
			return "", err
		}
		if s.limiter.TryAcquire(key) {
			keyBorrows.Inc()
			return key, nil
		}
		s.keyPool.Return(key)
		rateRejections.Inc()
		s.logger.Debug("Key 已达限流，等待后重试")
		s.sleep(ctx, rateLimitBackoff)
	}
	return "", pool.ErrPoolExhausted
}

// KeyPool 暴露给恢复任务和启动注入。
func (s *Service) KeyPool() pool.KeyPool {
	return s.keyPool
}

// RemainingQuota 该 Key 当前窗口剩余许可。
func (s *Service) RemainingQuota(key string) int64 {
	return s.limiter.RemainingQuota(key)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
