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

package job

import (
	"context"

	"github.com/gotomicro/ego/core/elog"
	"github.com/gotomicro/ego/task/ecron"
	"github.com/hanmo/hanmo/internal/dispatcher/internal/pool"
)

var _ ecron.NamedJob = (*KeyRecoveryJob)(nil)

// KeyRecoveryJob 定时把冷却完毕的失败 Key 恢复到可用池。
// 调度周期等于冷却时间，见配置 cron.recovery。
type KeyRecoveryJob struct {
	keyPool pool.KeyPool
	logger  *elog.Component
}

func NewKeyRecoveryJob(keyPool pool.KeyPool) *KeyRecoveryJob {
	return &KeyRecoveryJob{
		keyPool: keyPool,
		logger:  elog.DefaultLogger.With(elog.FieldComponent("KeyRecoveryJob")),
	}
}

func (j *KeyRecoveryJob) Name() string {
	return "KeyRecoveryJob"
}

func (j *KeyRecoveryJob) Run(_ context.Context) error {
	failed := j.keyPool.FailedCount()
	if failed == 0 {
		return nil
	}
	j.logger.Info("开始恢复失败 Key", elog.Int64("failedCount", failed))
	recovered := j.keyPool.RecoverFailedKeys()
	j.logger.Info("Key 恢复完成",
		elog.Int("recovered", recovered),
		elog.Int64("available", j.keyPool.AvailableCount()))
	return nil
}
