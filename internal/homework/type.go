package homework

import (
	"github.com/hanmo/hanmo/internal/homework/internal/domain"
	"github.com/hanmo/hanmo/internal/homework/internal/repository"
	"github.com/hanmo/hanmo/internal/homework/internal/service"
	"github.com/hanmo/hanmo/internal/homework/internal/service/provider"
	"github.com/hanmo/hanmo/internal/homework/internal/web"
)

type BatchResult = domain.BatchResult
type CharAnalysis = domain.CharAnalysis
type SingleCharResult = domain.SingleCharResult
type CopybookTemplate = domain.CopybookTemplate

type ResultStore = repository.ResultStore
type GradingEngine = service.GradingEngine
type Handler = web.Handler

type EngineConfig = service.Config
type ProviderConfig = provider.Config
