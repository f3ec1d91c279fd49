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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeyPool_FIFORotation(t *testing.T) {
	p := NewMemoryKeyPool(time.Second)
	p.AddKeys([]string{"k1", "k2"})

	// 借出去再还回来，始终轮到最久未用的那个
	var seen []string
	for i := 0; i < 4; i++ {
		key, err := p.Borrow(context.Background())
		require.NoError(t, err)
		seen = append(seen, key)
		p.Return(key)
	}
	assert.Equal(t, []string{"k1", "k2", "k1", "k2"}, seen)
	assert.Equal(t, int64(2), p.AvailableCount())
	assert.Equal(t, int64(0), p.FailedCount())
}

func TestMemoryKeyPool_BorrowTimeout(t *testing.T) {
	p := NewMemoryKeyPool(50 * time.Millisecond)

	start := time.Now()
	_, err := p.Borrow(context.Background())
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestMemoryKeyPool_BorrowCanceled(t *testing.T) {
	p := NewMemoryKeyPool(10 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.Borrow(ctx)
	// 取消与超时同等对待
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestMemoryKeyPool_MarkFailedAndRecover(t *testing.T) {
	p := NewMemoryKeyPool(50 * time.Millisecond)
	p.AddKey("k1")

	key, err := p.Borrow(context.Background())
	require.NoError(t, err)
	p.MarkFailed(key)

	assert.Equal(t, int64(0), p.AvailableCount())
	assert.Equal(t, int64(1), p.FailedCount())

	// 失败队列里的 Key 借不出来
	_, err = p.Borrow(context.Background())
	assert.ErrorIs(t, err, ErrPoolExhausted)

	assert.Equal(t, 1, p.RecoverFailedKeys())
	assert.Equal(t, int64(1), p.AvailableCount())
	assert.Equal(t, int64(0), p.FailedCount())

	key, err = p.Borrow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
}

func TestMemoryKeyPool_RecoverEmpty(t *testing.T) {
	p := NewMemoryKeyPool(time.Second)
	assert.Equal(t, 0, p.RecoverFailedKeys())
}

func TestMemoryKeyPool_ConcurrentBorrowers(t *testing.T) {
	p := NewMemoryKeyPool(time.Second)
	p.AddKeys([]string{"k1", "k2", "k3"})

	// 总量守恒：借出 + 可用 + 失败 == 3
	results := make(chan string, 3)
	for i := 0; i < 3; i++ {
		go func() {
			key, err := p.Borrow(context.Background())
			assert.NoError(t, err)
			results <- key
		}()
	}
	borrowed := map[string]bool{}
	for i := 0; i < 3; i++ {
		borrowed[<-results] = true
	}
	assert.Len(t, borrowed, 3)
	assert.Equal(t, int64(0), p.AvailableCount())
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "***", MaskKey("short"))
	assert.Equal(t, "sk-12345***", MaskKey("sk-1234567890abcdef"))
}
