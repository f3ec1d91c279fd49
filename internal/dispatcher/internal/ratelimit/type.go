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
	"fmt"
	"hash/fnv"
)

// Limiter 单 Key 滑动窗口限流。
//
// 两种实现：
//   - MemoryLimiter：内存实现，适合轻量单机部署
//   - RedisLimiter：Redis 实现，多实例共享限流计数
type Limiter interface {
	// TryAcquire 尝试为该 Key 获取一次请求许可。
	TryAcquire(key string) bool
	// RemainingQuota 当前窗口内剩余的可用请求数。
	RemainingQuota(key string) int64
}

// Fingerprint 以哈希代替明文做索引键，限流结构里不留 Key 原文。
func Fingerprint(key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return fmt.Sprintf("%08x", h.Sum32())
}
