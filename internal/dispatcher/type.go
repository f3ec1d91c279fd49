package dispatcher

import (
	"github.com/hanmo/hanmo/internal/dispatcher/internal/job"
	"github.com/hanmo/hanmo/internal/dispatcher/internal/pool"
	"github.com/hanmo/hanmo/internal/dispatcher/internal/ratelimit"
	"github.com/hanmo/hanmo/internal/dispatcher/internal/service"
)

type KeyPool = pool.KeyPool
type Limiter = ratelimit.Limiter
type Service = service.Service
type KeyRecoveryJob = job.KeyRecoveryJob

// ErrPoolExhausted 借不到 Key（等待超时或限流中），调用方退避后重试。
var ErrPoolExhausted = pool.ErrPoolExhausted

// ErrTaskFailed 重试次数用尽，映射为 AI_ERROR。
var ErrTaskFailed = service.ErrTaskFailed

// MaskKey 供外部日志使用的 Key 掩码。
var MaskKey = pool.MaskKey
