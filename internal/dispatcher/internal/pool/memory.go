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
	"time"

	"github.com/gotomicro/ego/core/elog"
)

// 单个池的容量上限。Key 数量是运维录入的，远达不到这个值。
const queueCap = 1024

var _ KeyPool = (*MemoryKeyPool)(nil)

// MemoryKeyPool 基于 channel 的内存 Key 池。
// channel 本身就是线程安全的阻塞队列，借/还都是 O(1)。
type MemoryKeyPool struct {
	available     chan string
	failed        chan string
	borrowTimeout time.Duration
	logger        *elog.Component
}

func NewMemoryKeyPool(borrowTimeout time.Duration) *MemoryKeyPool {
	return &MemoryKeyPool{
		available:     make(chan string, queueCap),
		failed:        make(chan string, queueCap),
		borrowTimeout: borrowTimeout,
		logger:        elog.DefaultLogger.With(elog.FieldComponent("MemoryKeyPool")),
	}
}

func (p *MemoryKeyPool) Borrow(ctx context.Context) (string, error) {
	timer := time.NewTimer(p.borrowTimeout)
	defer timer.Stop()
	select {
	case key := <-p.available:
		p.logger.Debug("借出 Key", elog.String("key", MaskKey(key)))
		return key, nil
	case <-timer.C:
		return "", ErrPoolExhausted
	case <-ctx.Done():
		// 等待中被取消，调用方与超时同等对待
		return "", ErrPoolExhausted
	}
}

func (p *MemoryKeyPool) Return(key string) {
	p.offer(p.available, key)
	p.logger.Debug("归还 Key", elog.String("key", MaskKey(key)))
}

func (p *MemoryKeyPool) MarkFailed(key string) {
	p.offer(p.failed, key)
	p.logger.Warn("Key 标记为失败", elog.String("key", MaskKey(key)))
}

func (p *MemoryKeyPool) AddKey(key string) {
	p.offer(p.available, key)
	p.logger.Info("添加新 Key 到池", elog.String("key", MaskKey(key)))
}

func (p *MemoryKeyPool) AddKeys(keys []string) {
	for _, key := range keys {
		p.offer(p.available, key)
	}
	p.logger.Info("批量添加 Key", elog.Int("count", len(keys)))
}

func (p *MemoryKeyPool) AvailableCount() int64 {
	return int64(len(p.available))
}

func (p *MemoryKeyPool) FailedCount() int64 {
	return int64(len(p.failed))
}

func (p *MemoryKeyPool) RecoverFailedKeys() int {
	recovered := 0
	for {
		select {
		case key := <-p.failed:
			p.offer(p.available, key)
			recovered++
		default:
			if recovered > 0 {
				p.logger.Info("恢复失败 Key", elog.Int("recovered", recovered))
			}
			return recovered
		}
	}
}

func (p *MemoryKeyPool) offer(q chan string, key string) {
	select {
	case q <- key:
	default:
		// 只会在 Key 数超过 queueCap 时发生
		p.logger.Error("Key 池已满，丢弃", elog.String("key", MaskKey(key)))
	}
}
