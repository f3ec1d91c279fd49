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
	"sync"
	"sync/atomic"
	"time"

	"github.com/gotomicro/ego/core/elog"
)

// 每积累这么多次申请做一轮闲置窗口清理
const sweepInterval = 256

var _ Limiter = (*MemoryLimiter)(nil)

// MemoryLimiter 内存滑动窗口限流器。
// 每个 Key 指纹维护一条时间戳队列，申请时先清理过期记录再计数。
type MemoryLimiter struct {
	window      time.Duration
	maxRequests int

	mu      sync.Mutex
	windows map[string]*slidingWindow

	acquires atomic.Int64
	// 测试注入
	now func() time.Time

	logger *elog.Component
}

type slidingWindow struct {
	mu        sync.Mutex
	stamps    []time.Time
	lastTouch time.Time
}

func NewMemoryLimiter(window time.Duration, maxRequests int) *MemoryLimiter {
	return &MemoryLimiter{
		window:      window,
		maxRequests: maxRequests,
		windows:     make(map[string]*slidingWindow),
		now:         time.Now,
		logger:      elog.DefaultLogger.With(elog.FieldComponent("MemoryLimiter")),
	}
}

func (l *MemoryLimiter) TryAcquire(key string) bool {
	w := l.windowFor(Fingerprint(key), true)
	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastTouch = now
	w.evict(now.Add(-l.window))
	if len(w.stamps) >= l.maxRequests {
		l.logger.Debug("Key 已达速率限制",
			elog.String("key", mask(key)),
			elog.Int("used", len(w.stamps)),
			elog.Int("max", l.maxRequests))
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

func (l *MemoryLimiter) RemainingQuota(key string) int64 {
	w := l.windowFor(Fingerprint(key), false)
	if w == nil {
		return int64(l.maxRequests)
	}
	now := l.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(now.Add(-l.window))
	remaining := l.maxRequests - len(w.stamps)
	if remaining < 0 {
		remaining = 0
	}
	return int64(remaining)
}

func (l *MemoryLimiter) windowFor(fp string, create bool) *slidingWindow {
	l.mu.Lock()
	w, ok := l.windows[fp]
	if !ok && create {
		w = &slidingWindow{lastTouch: l.now()}
		l.windows[fp] = w
	}
	l.mu.Unlock()
	if create && l.acquires.Add(1)%sweepInterval == 0 {
		l.sweep()
	}
	return w
}

// sweep 清掉闲置超过一个窗口加 10 秒的 Key，避免退役 Key 的窗口常驻内存。
func (l *MemoryLimiter) sweep() {
	deadline := l.now().Add(-l.window - 10*time.Second)
	l.mu.Lock()
	defer l.mu.Unlock()
	for fp, w := range l.windows {
		w.mu.Lock()
		idle := w.lastTouch.Before(deadline)
		w.mu.Unlock()
		if idle {
			delete(l.windows, fp)
		}
	}
}

func (w *slidingWindow) evict(windowStart time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(windowStart) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

func mask(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "***"
}
