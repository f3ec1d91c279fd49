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

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ecodeclub/ecache"
	"github.com/hanmo/hanmo/internal/homework/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ErrKeyNotExist 目前只有 Redis 一个实现，直接用别名
var ErrKeyNotExist = redis.Nil

const templateListKey = "hanmo:template:list"

type TemplateCache interface {
	GetList(ctx context.Context) ([]domain.CopybookTemplate, error)
	SetList(ctx context.Context, templates []domain.CopybookTemplate) error
}

type TemplateECache struct {
	cache      ecache.Cache
	expiration time.Duration
}

func NewTemplateECache(c ecache.Cache) TemplateCache {
	return &TemplateECache{
		cache: &ecache.NamespaceCache{
			Namespace: "homework:",
			C:         c,
		},
		expiration: 15 * time.Minute,
	}
}

func (c *TemplateECache) GetList(ctx context.Context) ([]domain.CopybookTemplate, error) {
	var res []domain.CopybookTemplate
	err := c.cache.Get(ctx, templateListKey).JSONScan(&res)
	return res, err
}

func (c *TemplateECache) SetList(ctx context.Context, templates []domain.CopybookTemplate) error {
	data, err := json.Marshal(templates)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, templateListKey, data, c.expiration)
}
