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

package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gotomicro/ego/core/elog"
	"github.com/hanmo/hanmo/internal/dispatcher"
	"github.com/hanmo/hanmo/internal/homework/internal/domain"
	"github.com/hanmo/hanmo/internal/homework/internal/errs"
	"github.com/hanmo/hanmo/internal/homework/internal/event"
	"github.com/hanmo/hanmo/internal/homework/internal/repository"
	"github.com/hanmo/hanmo/internal/homework/internal/service"
	"github.com/lithammer/shortuuid/v4"
	"gorm.io/gorm"
)

const (
	maxUploadBytes = 10 << 20
	// 防刷：同一用户 5 分钟内最多 20 次
	floodWindowMinutes = 5
	floodMaxCalls      = 20
)

// Handler 书法作业批改 REST API。
//
// 三种模式：
//  1. 整页批改（自由模式）：不选模板，AI 分析全页，文字点评 + 行列位置
//  2. 整页批改（模板模式）：选择字帖模板，确定性网格裁切，精确截图
//  3. 单字精批：上传单个字的图片，多维度深度分析
type Handler struct {
	engine   *service.GradingEngine
	store    repository.ResultStore
	cropper  *service.GridCropper
	producer *event.GradingEventProducer
	// 记进调用日志的提供商名
	providerName string
	logger       *elog.Component
}

func NewHandler(engine *service.GradingEngine, store repository.ResultStore,
	cropper *service.GridCropper, producer *event.GradingEventProducer, providerName string) *Handler {
	return &Handler{
		engine:       engine,
		store:        store,
		cropper:      cropper,
		producer:     producer,
		providerName: providerName,
		logger:       elog.DefaultLogger.With(elog.FieldComponent("HomeworkHandler")),
	}
}

func (h *Handler) PublicRoutes(server *gin.Engine) {
	group := server.Group("/api/homework")
	group.GET("/templates", h.ListTemplates)
	group.POST("/analyze", h.Analyze)
	group.POST("/analyze-stream", h.AnalyzeStream)
	group.POST("/analyze-single", h.AnalyzeSingle)
	group.POST("/analyze-single-stream", h.AnalyzeSingleStream)
	group.GET("/history/:userId", h.History)
	group.GET("/growth/:userId/:charName", h.GrowthCurve)
	group.GET("/:taskId", h.GetResult)
}

// ======================== 字帖模板 ========================

func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.store.ListTemplates(c.Request.Context())
	if err != nil {
		h.logger.Error("查询模板列表失败", elog.FieldErr(err))
		c.JSON(http.StatusInternalServerError, fail(errs.SystemError, ""))
		return
	}
	c.JSON(http.StatusOK, ok(templates, ""))
}

// ======================== 整页批改（阻塞式） ========================

func (h *Handler) Analyze(c *gin.Context) {
	imageBytes, fileName, errCode := h.readUpload(c)
	if errCode != nil {
		c.JSON(http.StatusBadRequest, fail(*errCode, ""))
		return
	}
	uid := formInt64(c, "userId")
	copyBookID := c.PostForm("copyBookId")
	h.logger.Info("收到批改请求",
		elog.String("fileName", fileName),
		elog.Int("size", len(imageBytes)),
		elog.Int64("userId", uid))

	if h.flooded(c.Request.Context(), uid) {
		c.JSON(http.StatusBadRequest, fail(errs.RateLimited, ""))
		return
	}
	template := h.resolveTemplate(c)

	start := time.Now()
	result, err := h.engine.GradeWholePage(c.Request.Context(), imageBytes)
	if err != nil {
		h.logger.Error("批改失败", elog.FieldErr(err))
		h.logUsage(c.Request.Context(), "", uid, "whole-page", 0, time.Since(start).Milliseconds(), false, err.Error())
		code, status := mapError(err)
		c.JSON(status, fail(code, ""))
		return
	}

	result.ImageID = newImageID()
	if template != nil {
		h.cropper.Attach(&result, imageBytes, *template)
	}
	h.persistBatch(c.Request.Context(), &result, fileName, uid, copyBookID)
	c.JSON(http.StatusOK, ok(result, "批改完成"))
}

// ======================== 整页批改（SSE 流式） ========================

// AnalyzeStream SSE 事件流：
//
//	start → thinking*（仅在首个 token 之前）→ token* → result 或 error
func (h *Handler) AnalyzeStream(c *gin.Context) {
	imageBytes, fileName, errCode := h.readUpload(c)
	if errCode != nil {
		c.JSON(http.StatusBadRequest, fail(*errCode, ""))
		return
	}
	uid := formInt64(c, "userId")
	copyBookID := c.PostForm("copyBookId")
	h.logger.Info("收到流式批改请求",
		elog.String("fileName", fileName),
		elog.Int("size", len(imageBytes)),
		elog.Int64("userId", uid))

	emitter := newSSEEmitter(c, h.logger)
	emitter.send("start", "{}")
	if h.flooded(c.Request.Context(), uid) {
		emitter.send("error", errs.RateLimited.Msg)
		return
	}
	template := h.resolveTemplate(c)

	h.engine.GradeWholePageStream(c.Request.Context(), imageBytes,
		service.StreamCallbacks{
			OnThinking: func(msg string) { emitter.send("thinking", msg) },
			OnToken:    func(token string) { emitter.send("token", token) },
			OnError:    func(msg string) { emitter.send("error", msg) },
		},
		func(result domain.BatchResult) {
			result.ImageID = newImageID()
			if template != nil {
				h.cropper.Attach(&result, imageBytes, *template)
			}
			h.persistBatch(c.Request.Context(), &result, fileName, uid, copyBookID)
			emitter.sendJSON("result", result)
		})
}

// ======================== 单字精批 ========================

func (h *Handler) AnalyzeSingle(c *gin.Context) {
	imageBytes, fileName, errCode := h.readUpload(c)
	if errCode != nil {
		c.JSON(http.StatusBadRequest, fail(*errCode, ""))
		return
	}
	uid := formInt64(c, "userId")
	h.logger.Info("收到单字精批请求",
		elog.String("fileName", fileName), elog.Int("size", len(imageBytes)))

	if h.flooded(c.Request.Context(), uid) {
		c.JSON(http.StatusBadRequest, fail(errs.RateLimited, ""))
		return
	}

	start := time.Now()
	result, err := h.engine.GradeSingleChar(c.Request.Context(), imageBytes)
	if err != nil {
		h.logger.Error("单字精批失败", elog.FieldErr(err))
		h.logUsage(c.Request.Context(), "", uid, "single-char", 0, time.Since(start).Milliseconds(), false, err.Error())
		code, status := mapError(err)
		c.JSON(status, fail(code, ""))
		return
	}
	h.persistSingle(c.Request.Context(), &result, uid)
	c.JSON(http.StatusOK, ok(result, "单字精批完成"))
}

func (h *Handler) AnalyzeSingleStream(c *gin.Context) {
	imageBytes, fileName, errCode := h.readUpload(c)
	if errCode != nil {
		c.JSON(http.StatusBadRequest, fail(*errCode, ""))
		return
	}
	uid := formInt64(c, "userId")
	h.logger.Info("收到流式单字精批请求",
		elog.String("fileName", fileName), elog.Int("size", len(imageBytes)))

	emitter := newSSEEmitter(c, h.logger)
	emitter.send("start", "{}")
	if h.flooded(c.Request.Context(), uid) {
		emitter.send("error", errs.RateLimited.Msg)
		return
	}

	h.engine.GradeSingleCharStream(c.Request.Context(), imageBytes,
		service.StreamCallbacks{
			OnThinking: func(msg string) { emitter.send("thinking", msg) },
			OnToken:    func(token string) { emitter.send("token", token) },
			OnError:    func(msg string) { emitter.send("error", msg) },
		},
		func(result domain.SingleCharResult) {
			h.persistSingle(c.Request.Context(), &result, uid)
			emitter.sendJSON("result", result)
		})
}

// ======================== 查询 ========================

func (h *Handler) GetResult(c *gin.Context) {
	taskID := c.Param("taskId")
	// 单字精批任务查单字表
	if strings.HasPrefix(taskID, "single-") {
		single, err := h.store.FindSingleByTaskID(c.Request.Context(), taskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, fail(errs.NotFound, "未找到批改记录: "+taskID))
				return
			}
			h.logger.Error("查询单字精批结果失败", elog.FieldErr(err))
			c.JSON(http.StatusInternalServerError, fail(errs.SystemError, ""))
			return
		}
		c.JSON(http.StatusOK, ok(single, ""))
		return
	}
	result, err := h.store.FindByTaskID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, fail(errs.NotFound, "未找到批改记录: "+taskID))
			return
		}
		h.logger.Error("查询批改结果失败", elog.FieldErr(err))
		c.JSON(http.StatusInternalServerError, fail(errs.SystemError, ""))
		return
	}
	c.JSON(http.StatusOK, ok(result, ""))
}

func (h *Handler) History(c *gin.Context) {
	uid, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, fail(errs.SystemError, "非法的用户ID"))
		return
	}
	list, err := h.store.FindRecentHomeworks(c.Request.Context(), uid)
	if err != nil {
		h.logger.Error("查询作业历史失败", elog.FieldErr(err))
		c.JSON(http.StatusInternalServerError, fail(errs.SystemError, ""))
		return
	}
	c.JSON(http.StatusOK, ok(list, ""))
}

func (h *Handler) GrowthCurve(c *gin.Context) {
	uid, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, fail(errs.SystemError, "非法的用户ID"))
		return
	}
	curve, err := h.store.GrowthCurve(c.Request.Context(), uid, c.Param("charName"))
	if err != nil {
		h.logger.Error("查询成长曲线失败", elog.FieldErr(err))
		c.JSON(http.StatusInternalServerError, fail(errs.SystemError, ""))
		return
	}
	c.JSON(http.StatusOK, ok(curve, ""))
}

// ======================== 内部方法 ========================

// readUpload 取 multipart 的 file 字段，超过 10MB 直接拒绝。
func (h *Handler) readUpload(c *gin.Context) ([]byte, string, *errs.ErrorCode) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.logger.Warn("缺少上传文件", elog.FieldErr(err))
		return nil, "", &errs.AnalyzeFailed
	}
	if fileHeader.Size > maxUploadBytes {
		return nil, "", &errs.FileTooLarge
	}
	data, err := readAll(fileHeader)
	if err != nil {
		h.logger.Warn("读取上传文件失败", elog.FieldErr(err))
		return nil, "", &errs.AnalyzeFailed
	}
	return data, fileHeader.Filename, nil
}

func (h *Handler) flooded(ctx context.Context, uid int64) bool {
	if uid == 0 {
		return false
	}
	count, err := h.store.CountRecentCalls(ctx, uid, floodWindowMinutes)
	if err != nil {
		h.logger.Warn("防刷检查失败，放行", elog.FieldErr(err))
		return false
	}
	return count >= floodMaxCalls
}

func (h *Handler) resolveTemplate(c *gin.Context) *domain.CopybookTemplate {
	raw := c.PostForm("templateId")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	tpl, err := h.store.FindTemplateByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Warn("模板不存在，按自由模式处理", elog.Int64("templateId", id))
		return nil
	}
	return &tpl
}

// persistBatch 落库 + 调用流水 + 完成事件，全部失败不影响返回。
func (h *Handler) persistBatch(ctx context.Context, result *domain.BatchResult,
	fileName string, uid int64, copyBookID string) {
	if _, err := h.store.SaveResult(ctx, *result, fileName, uid, copyBookID); err != nil {
		h.logger.Warn("批改结果持久化失败（不影响返回）", elog.FieldErr(err))
	}
	h.logUsage(ctx, result.TaskID, uid, "whole-page",
		result.TotalCharacters, result.ProcessingTimeMs, true, "")
	h.produceEvent(ctx, event.GradingCompletedEvent{
		TaskID:    result.TaskID,
		Uid:       uid,
		Mode:      "whole-page",
		CharCount: result.TotalCharacters,
		AvgScore:  result.AvgOverallScore,
	})
}

func (h *Handler) persistSingle(ctx context.Context, result *domain.SingleCharResult, uid int64) {
	if _, err := h.store.SaveSingleResult(ctx, *result, uid); err != nil {
		h.logger.Warn("单字精批结果持久化失败（不影响返回）", elog.FieldErr(err))
	}
	h.logUsage(ctx, result.TaskID, uid, "single-char", 1, result.ProcessingTimeMs, true, "")
	h.produceEvent(ctx, event.GradingCompletedEvent{
		TaskID:    result.TaskID,
		Uid:       uid,
		Mode:      "single-char",
		CharCount: 1,
		AvgScore:  result.OverallScore,
	})
}

func (h *Handler) logUsage(ctx context.Context, taskID string, uid int64,
	mode string, charCount int, latencyMs int64, success bool, errMsg string) {
	err := h.store.LogKeyUsage(ctx, repository.KeyUsage{
		TaskID:    taskID,
		Uid:       uid,
		Provider:  h.providerName,
		Model:     mode,
		CharCount: charCount,
		LatencyMs: latencyMs,
		Success:   success,
		ErrorMsg:  errMsg,
	})
	if err != nil {
		h.logger.Warn("记录调用日志失败", elog.FieldErr(err))
	}
}

func (h *Handler) produceEvent(ctx context.Context, evt event.GradingCompletedEvent) {
	if h.producer == nil {
		return
	}
	if err := h.producer.Produce(ctx, evt); err != nil {
		h.logger.Warn("发送批改完成事件失败", elog.FieldErr(err))
	}
}

func mapError(err error) (errs.ErrorCode, int) {
	switch {
	case errors.Is(err, dispatcher.ErrPoolExhausted):
		return errs.Exhausted, http.StatusInternalServerError
	case errors.Is(err, dispatcher.ErrTaskFailed):
		return errs.AIError, http.StatusInternalServerError
	default:
		return errs.AnalyzeFailed, http.StatusInternalServerError
	}
}

func formInt64(c *gin.Context, key string) int64 {
	v, err := strconv.ParseInt(c.PostForm(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func newImageID() string {
	id := shortuuid.New()
	if len(id) > 12 {
		id = id[:12]
	}
	return "img-" + id
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// ======================== SSE ========================

// sseEmitter 串行化并发写（心跳和 token 来自不同 goroutine），
// 发送失败按客户端断开处理，吞掉不抛。
type sseEmitter struct {
	c      *gin.Context
	mu     chan struct{}
	logger *elog.Component
}

func newSSEEmitter(c *gin.Context, logger *elog.Component) *sseEmitter {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	mu := make(chan struct{}, 1)
	mu <- struct{}{}
	return &sseEmitter{c: c, mu: mu, logger: logger}
}

func (e *sseEmitter) send(name, data string) {
	<-e.mu
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("SSE 发送失败（客户端可能已断开）", elog.String("event", name))
		}
		e.mu <- struct{}{}
	}()
	e.c.SSEvent(name, data)
	e.c.Writer.Flush()
}

func (e *sseEmitter) sendJSON(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		e.logger.Error("结果序列化失败", elog.FieldErr(err))
		e.send("error", "结果处理失败")
		return
	}
	e.send(name, string(data))
}
