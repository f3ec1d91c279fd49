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

package homework

import (
	"sync"

	"github.com/ecodeclub/ecache"
	"github.com/ecodeclub/mq-api"
	"github.com/ego-component/egorm"
	"github.com/hanmo/hanmo/internal/dispatcher"
	"github.com/hanmo/hanmo/internal/homework/internal/event"
	"github.com/hanmo/hanmo/internal/homework/internal/repository"
	"github.com/hanmo/hanmo/internal/homework/internal/repository/cache"
	"github.com/hanmo/hanmo/internal/homework/internal/repository/dao"
	"github.com/hanmo/hanmo/internal/homework/internal/service"
	"github.com/hanmo/hanmo/internal/homework/internal/service/provider"
	"github.com/hanmo/hanmo/internal/homework/internal/web"
	"gorm.io/gorm"
)

type Module struct {
	Hdl    *Handler
	Engine *GradingEngine
	Store  ResultStore
}

// InitModule 显式装配批改模块，进程启动时调用一次。
func InitModule(db *egorm.Component, ec ecache.Cache, q mq.MQ,
	disp *dispatcher.Module, engineCfg EngineConfig, providerCfg ProviderConfig) (*Module, error) {
	InitTableOnce(db)

	store := repository.NewResultStore(
		dao.NewGORMHomeworkDAO(db),
		dao.NewGORMAnalysisDAO(db),
		dao.NewGORMKeyLogDAO(db),
		dao.NewGORMSingleAnalysisDAO(db),
		dao.NewGORMTemplateDAO(db),
		cache.NewTemplateECache(ec),
	)

	factory := provider.NewFactory(providerCfg)
	engine := service.NewGradingEngine(factory, disp.Svc, engineCfg)

	producer, err := event.NewGradingEventProducer(q)
	if err != nil {
		return nil, err
	}

	hdl := web.NewHandler(engine, store, service.NewGridCropper(), producer, providerCfg.Provider)
	return &Module{
		Hdl:    hdl,
		Engine: engine,
		Store:  store,
	}, nil
}

var daoOnce = sync.Once{}

func InitTableOnce(db *gorm.DB) {
	daoOnce.Do(func() {
		err := dao.InitTables(db)
		if err != nil {
			panic(err)
		}
	})
}
