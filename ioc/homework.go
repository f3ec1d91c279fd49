package ioc

import (
	"github.com/ecodeclub/ecache"
	"github.com/ecodeclub/mq-api"
	"github.com/ego-component/egorm"
	"github.com/gotomicro/ego/core/econf"
	"github.com/hanmo/hanmo/internal/dispatcher"
	"github.com/hanmo/hanmo/internal/homework"
)

func InitHomeworkModule(db *egorm.Component, ec ecache.Cache, q mq.MQ,
	disp *dispatcher.Module) *homework.Module {
	engineCfg := homework.EngineConfig{
		MaxImageSize: 512,
	}
	if err := econf.UnmarshalKey("homework", &engineCfg); err != nil {
		panic(err)
	}

	var providerCfg homework.ProviderConfig
	if err := econf.UnmarshalKey("homework.ai", &providerCfg); err != nil {
		panic(err)
	}
	if providerCfg.Provider == "" {
		providerCfg.Provider = "openai"
	}
	if providerCfg.RequestTimeoutSeconds == 0 {
		providerCfg.RequestTimeoutSeconds = 30
	}

	m, err := homework.InitModule(db, ec, q, disp, engineCfg, providerCfg)
	if err != nil {
		panic(err)
	}
	return m
}
