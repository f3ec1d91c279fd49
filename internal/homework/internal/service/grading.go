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

package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/hanmo/hanmo/internal/dispatcher"
	"github.com/hanmo/hanmo/internal/homework/internal/domain"
	"github.com/hanmo/hanmo/internal/homework/internal/service/prompt"
	"github.com/hanmo/hanmo/internal/homework/internal/service/provider"
	"github.com/lithammer/shortuuid/v4"
)

const (
	// 流式批改的端到端上限，覆盖最慢场景
	streamTimeout = 180 * time.Second
	// AI 思考期间的心跳间隔
	heartbeatInterval = 3 * time.Second

	timeLayout = "2006-01-02 15:04:05"
)

// AI 思考期间轮播的提示语，播到最后一条后停在那里
var wholePageThinking = []string{
	"正在上传图片到 AI 模型...",
	"AI 正在观察作业整体布局...",
	"正在分析字的间架结构...",
	"正在评估笔画力度与走势...",
	"正在识别每个字的特征...",
	"正在对比标准字帖...",
	"正在撰写专业点评...",
	"AI 思考中，大型模型需要更多时间...",
	"即将完成，请再稍等片刻...",
}

var singleCharThinking = []string{
	"正在上传图片到 AI 模型...",
	"AI 正在细察这个字的每一笔...",
	"正在分析结构比例...",
	"正在评估笔画力度...",
	"正在分析重心与间架...",
	"正在撰写深度点评...",
	"AI 思考中，请稍等...",
}

// Config 批改引擎配置，对应配置文件 homework 段。
type Config struct {
	// 图片最大尺寸（发送前缩放，减少 Token 消耗）
	MaxImageSize int `yaml:"maxImageSize"`
	// 是否启用多 Agent 模式（三次调用：结构 + 笔画 + 综合评语）
	MultiAgentEnabled bool `yaml:"multiAgentEnabled"`
}

// StreamCallbacks 流式批改的下游回调。Token 转发是同步的，背压天然存在。
type StreamCallbacks struct {
	OnThinking func(msg string)
	OnToken    func(token string)
	OnError    func(msg string)
}

// ProviderFactory 按配置挑出当前生效的提供商。
type ProviderFactory interface {
	Get() (provider.Provider, error)
}

// GradingEngine 书法作业批改核心：一次上游调用完成整页分析。
//
// 整页模式下 AI 自动识别所有字并挑出写得不好的 3~5 个重点点评，
// 相比逐字切分逐字调用，一张作业只消耗一次 API 调用。
type GradingEngine struct {
	factory    ProviderFactory
	dispatcher *dispatcher.Service
	cfg        Config
	logger     *elog.Component

	// 测试注入
	hbInterval time.Duration
}

func NewGradingEngine(factory ProviderFactory, disp *dispatcher.Service, cfg Config) *GradingEngine {
	return &GradingEngine{
		factory:    factory,
		dispatcher: disp,
		cfg:        cfg,
		logger:     elog.DefaultLogger.With(elog.FieldComponent("GradingEngine")),
		hbInterval: heartbeatInterval,
	}
}

// GradeWholePage 整页批改（阻塞式），借 Key、限流、重试都走调度器。
func (e *GradingEngine) GradeWholePage(ctx context.Context, imageBytes []byte) (domain.BatchResult, error) {
	start := time.Now()
	taskID := newTaskID("task")
	e.logger.Info("开始整页批改任务", elog.String("taskId", taskID))

	imageB64, err := e.prepareImage(imageBytes)
	if err != nil {
		return domain.BatchResult{}, err
	}
	p, err := e.factory.Get()
	if err != nil {
		return domain.BatchResult{}, err
	}

	var result domain.BatchResult
	err = e.dispatcher.ExecuteWithRetry(ctx, func(ctx context.Context, apiKey string) error {
		text, err := p.AnalyzeImage(ctx, imageB64, prompt.WholePageAnalysis, apiKey)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return provider.ErrEmptyContent
		}
		result = e.parseWholePage(text, taskID)
		return nil
	})
	if err != nil {
		return domain.BatchResult{}, err
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.CreatedAt = time.Now().Format(timeLayout)
	e.logger.Info("整页批改任务完成",
		elog.String("taskId", taskID),
		elog.Int64("costMs", result.ProcessingTimeMs),
		elog.Int("totalChars", result.TotalCharacters),
		elog.Int("problemChars", len(result.Analyses)),
		elog.Int("overallScore", result.AvgOverallScore))
	return result, nil
}

// GradeWholePageStream 整页批改（流式回调）：边收 AI 响应边把增量推给调用方。
// 流正常结束后解析出的 BatchResult 经 onResult 交付；出错时只调用 OnError，不调用 onResult。
func (e *GradingEngine) GradeWholePageStream(ctx context.Context, imageBytes []byte,
	cb StreamCallbacks, onResult func(domain.BatchResult)) {
	start := time.Now()
	taskID := newTaskID("task")
	e.logger.Info("开始流式批改任务", elog.String("taskId", taskID))

	full, err := e.streamUpstream(ctx, imageBytes, prompt.WholePageAnalysis, wholePageThinking, cb, start)
	if err != nil {
		cb.OnError("批改失败: " + err.Error())
		return
	}

	result := e.parseWholePage(full, taskID)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.CreatedAt = time.Now().Format(timeLayout)
	e.logger.Info("流式批改任务完成",
		elog.String("taskId", taskID),
		elog.Int64("costMs", result.ProcessingTimeMs),
		elog.Int("totalChars", result.TotalCharacters),
		elog.Int("overallScore", result.AvgOverallScore))
	onResult(result)
}

// GradeSingleChar 单字精批（阻塞式）。
// 多 Agent 模式下由三位“专家”各自打分再合成，默认单次综合分析。
func (e *GradingEngine) GradeSingleChar(ctx context.Context, imageBytes []byte) (domain.SingleCharResult, error) {
	start := time.Now()
	taskID := newTaskID("single")
	e.logger.Info("开始单字精批任务", elog.String("taskId", taskID))

	imageB64, err := e.prepareImage(imageBytes)
	if err != nil {
		return domain.SingleCharResult{}, err
	}
	p, err := e.factory.Get()
	if err != nil {
		return domain.SingleCharResult{}, err
	}

	var result domain.SingleCharResult
	err = e.dispatcher.ExecuteWithRetry(ctx, func(ctx context.Context, apiKey string) error {
		if e.cfg.MultiAgentEnabled {
			merged, aerr := e.multiAgentAnalyze(ctx, p, imageB64, apiKey, taskID)
			if aerr != nil {
				return aerr
			}
			result = merged
			return nil
		}
		text, err := p.AnalyzeImage(ctx, imageB64, prompt.SingleCharAnalysis, apiKey)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return provider.ErrEmptyContent
		}
		result = parseSingleCharText(text, taskID)
		return nil
	})
	if err != nil {
		return domain.SingleCharResult{}, err
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.CreatedAt = time.Now().Format(timeLayout)
	e.logger.Info("单字精批任务完成",
		elog.String("taskId", taskID),
		elog.String("char", result.RecognizedChar),
		elog.Int("score", result.OverallScore))
	return result, nil
}

// GradeSingleCharStream 单字精批（流式回调）。
func (e *GradingEngine) GradeSingleCharStream(ctx context.Context, imageBytes []byte,
	cb StreamCallbacks, onResult func(domain.SingleCharResult)) {
	start := time.Now()
	taskID := newTaskID("single")
	e.logger.Info("开始流式单字精批任务", elog.String("taskId", taskID))

	full, err := e.streamUpstream(ctx, imageBytes, prompt.SingleCharAnalysis, singleCharThinking, cb, start)
	if err != nil {
		cb.OnError("单字精批失败: " + err.Error())
		return
	}

	result := parseSingleCharText(full, taskID)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.CreatedAt = time.Now().Format(timeLayout)
	onResult(result)
}

// streamUpstream 借 Key → 心跳 → 流式上游调用 → 归还或标记失败，返回完整文本。
func (e *GradingEngine) streamUpstream(ctx context.Context, imageBytes []byte,
	promptText string, thinkingMsgs []string, cb StreamCallbacks, start time.Time) (string, error) {
	imageB64, err := e.prepareImage(imageBytes)
	if err != nil {
		return "", err
	}
	p, err := e.factory.Get()
	if err != nil {
		return "", err
	}

	apiKey, err := e.dispatcher.BorrowWithRate(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, streamTimeout)
	defer cancel()

	// 检查加发送在同一把锁里完成：首个 token 一旦发出，
	// 已经抢到调度的心跳也发不出迟到的 thinking
	gate := &thinkingGate{}
	hbDone := make(chan struct{})
	go e.heartbeat(ctx, hbDone, thinkingMsgs, func(msg string) bool {
		return gate.emitThinking(msg, cb.OnThinking)
	})

	full, err := analyzeStream(ctx, p, imageB64, promptText, apiKey, func(token string) {
		if gate.emitToken(token, cb.OnToken) {
			e.logger.Info("收到首个 token", elog.FieldCost(time.Since(start)))
		}
	})

	// 主流程结束就叫停心跳，尽快释放
	gate.shut()
	close(hbDone)

	if err != nil {
		e.dispatcher.KeyPool().MarkFailed(apiKey)
		e.logger.Error("流式批改失败",
			elog.String("key", dispatcher.MaskKey(apiKey)), elog.FieldErr(err))
		return "", err
	}
	e.dispatcher.KeyPool().Return(apiKey)
	if strings.TrimSpace(full) == "" {
		return "", provider.ErrEmptyContent
	}
	e.logger.Info("流式 AI 响应完成", elog.Int("chars", len([]rune(full))))
	return full, nil
}

// thinkingGate 串行化 thinking 与 token 的发送，保证 token 之后不再出现 thinking。
type thinkingGate struct {
	mu        sync.Mutex
	tokenSeen bool
}

// emitThinking 首个 token 之前发出提示，返回 false 表示心跳该停了。
func (g *thinkingGate) emitThinking(msg string, onThinking func(string)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tokenSeen {
		return false
	}
	if onThinking != nil {
		onThinking(msg)
	}
	return true
}

// emitToken 转发 token 并关闭 thinking 通道，返回是否是首个 token。
func (g *thinkingGate) emitToken(token string, onToken func(string)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	first := !g.tokenSeen
	g.tokenSeen = true
	onToken(token)
	return first
}

func (g *thinkingGate) shut() {
	g.mu.Lock()
	g.tokenSeen = true
	g.mu.Unlock()
}

// heartbeat 首个 token 到达或任务结束前，每隔固定间隔发一条思考提示。
// 提示语按顺序轮播，走到最后一条后不再前进。
func (e *GradingEngine) heartbeat(ctx context.Context, done <-chan struct{},
	msgs []string, emit func(msg string) bool) {
	ticker := time.NewTicker(e.hbInterval)
	defer ticker.Stop()
	idx := 0
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !emit(msgs[min(idx, len(msgs)-1)]) {
				return
			}
			idx++
		}
	}
}

// analyzeStream 提供商支持流式就逐 token 转发，否则退化为一次性调用。
func analyzeStream(ctx context.Context, p provider.Provider,
	imageB64, promptText, apiKey string, onToken func(string)) (string, error) {
	if sp, ok := p.(provider.StreamProvider); ok {
		return sp.AnalyzeImageStream(ctx, imageB64, promptText, apiKey, onToken)
	}
	full, err := p.AnalyzeImage(ctx, imageB64, promptText, apiKey)
	if err != nil {
		return "", err
	}
	onToken(full)
	return full, nil
}

// parseWholePage 优先按可读模板解析；旧版模型输出 JSON 时走修复解析兜底。
func (e *GradingEngine) parseWholePage(text, taskID string) domain.BatchResult {
	if strings.Contains(text, "共识别") {
		return parseWholePageText(text, taskID)
	}
	if cleaned := cleanJSONResponse(text); strings.HasPrefix(cleaned, "{") {
		e.logger.Info("回复不是点评模板，尝试按 JSON 解析", elog.String("taskId", taskID))
		return parseWholePageJSON(text, taskID)
	}
	return parseWholePageText(text, taskID)
}

// prepareImage 压缩并编码。空图片直接判 AI 失败，不把空字节发给上游。
func (e *GradingEngine) prepareImage(imageBytes []byte) (string, error) {
	if len(imageBytes) == 0 {
		return "", fmt.Errorf("%w: 图片内容为空", dispatcher.ErrTaskFailed)
	}
	compressed := compressImage(imageBytes, e.cfg.MaxImageSize, e.logger)
	return base64.StdEncoding.EncodeToString(compressed), nil
}

func newTaskID(prefix string) string {
	id := shortuuid.New()
	if len(id) > 12 {
		id = id[:12]
	}
	return prefix + "-" + id
}
