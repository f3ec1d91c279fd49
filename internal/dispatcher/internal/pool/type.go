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
)

// ErrPoolExhausted 池内暂时借不到 Key：等待超时、上下文取消或限流中。
var ErrPoolExhausted = errors.New("API Key 池已耗尽，请稍后重试或添加更多 Key")

// KeyPool API Key 轮询池。
//
// 两种实现：
//   - MemoryKeyPool：内存实现，适合轻量单机部署
//   - RedisKeyPool：Redis 实现，适合分布式多实例部署
//
// 不变式：任一时刻一个 Key 至多出现在一个队列里；
// 每次成功的 Borrow 之后必须恰好调用一次 Return 或 MarkFailed。
type KeyPool interface {
	// Borrow 从池中借出一个可用 Key，最多阻塞等待借用超时时长。
	// 借不到返回 ErrPoolExhausted。
	Borrow(ctx context.Context) (string, error)
	// Return 归还 Key 到可用队列尾部（FIFO 轮转，摊平负载）。
	Return(key string)
	// MarkFailed 将 Key 移入失败队列，等待冷却恢复。
	MarkFailed(key string)
	// AddKey 向池中添加一个 Key。
	AddKey(key string)
	// AddKeys 批量添加 Key。
	AddKeys(keys []string)
	// AvailableCount 可用 Key 数量，仅供参考，不能用于正确性判断。
	AvailableCount() int64
	// FailedCount 失败 Key 数量。
	FailedCount() int64
	// RecoverFailedKeys 将失败队列整体搬回可用队列，返回恢复数量。
	RecoverFailedKeys() int
}

// MaskKey 日志里永远只露出 Key 的前 8 个字符。
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "***"
}
