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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiter_WindowBoundary(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := NewMemoryLimiter(60*time.Second, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.TryAcquire("k1"))
	assert.True(t, l.TryAcquire("k1"))
	// 正好用满窗口，第三次拒绝
	assert.False(t, l.TryAcquire("k1"))
	assert.Equal(t, int64(0), l.RemainingQuota("k1"))

	// 窗口内任意时刻仍然拒绝
	now = now.Add(59 * time.Second)
	assert.False(t, l.TryAcquire("k1"))

	// 满一个窗口后最早的记录过期，重新放行
	now = now.Add(2 * time.Second)
	assert.True(t, l.TryAcquire("k1"))
}

func TestMemoryLimiter_PerKeyIsolation(t *testing.T) {
	l := NewMemoryLimiter(60*time.Second, 1)

	assert.True(t, l.TryAcquire("k1"))
	assert.False(t, l.TryAcquire("k1"))
	// 另一个 Key 不受影响
	assert.True(t, l.TryAcquire("k2"))
}

func TestMemoryLimiter_RemainingQuota(t *testing.T) {
	l := NewMemoryLimiter(60*time.Second, 5)

	// 没见过的 Key 是满额度
	assert.Equal(t, int64(5), l.RemainingQuota("fresh"))

	l.TryAcquire("k1")
	l.TryAcquire("k1")
	assert.Equal(t, int64(3), l.RemainingQuota("k1"))
}

func TestMemoryLimiter_SweepIdleWindows(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := NewMemoryLimiter(time.Second, 10)
	l.now = func() time.Time { return now }

	l.TryAcquire("k1")
	assert.Len(t, l.windows, 1)

	// 闲置超过窗口 + 10s 后被清理
	now = now.Add(12 * time.Second)
	l.sweep()
	assert.Len(t, l.windows, 0)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("abc"), Fingerprint("abc"))
	assert.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
	assert.Len(t, Fingerprint("anything"), 8)
}
