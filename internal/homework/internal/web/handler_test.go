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
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hanmo/hanmo/internal/dispatcher"
	"github.com/hanmo/hanmo/internal/homework/internal/domain"
	"github.com/hanmo/hanmo/internal/homework/internal/repository"
	"github.com/hanmo/hanmo/internal/homework/internal/service"
	"github.com/hanmo/hanmo/internal/homework/internal/service/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const canonicalReply = `共识别 20 个汉字（4 行 5 列）：飞,流,直,下,三,千,尺,疑,是,银,河,落,九,天,白,日,依,山,尽,黄
结构：73 分 | 笔画：71 分 | 综合：73 分
【重点点评】
1.「疑」（第3行第3列，综合 61 分）
结构（62 分）：左右失衡
笔画（60 分）：撇画软弱
建议：对照字帖临摹
【总评】整体有进步，继续努力！`

// fakeStore 手写桩实现，记录落库调用
type fakeStore struct {
	recentCalls   int64
	savedBatch    []domain.BatchResult
	savedSingle   []domain.SingleCharResult
	usages        []repository.KeyUsage
	templates     []domain.CopybookTemplate
	batchByTaskID map[string]domain.BatchResult
}

func (f *fakeStore) SaveResult(_ context.Context, result domain.BatchResult, _ string, _ int64, _ string) (int64, error) {
	f.savedBatch = append(f.savedBatch, result)
	return int64(len(f.savedBatch)), nil
}

func (f *fakeStore) SaveSingleResult(_ context.Context, result domain.SingleCharResult, _ int64) (int64, error) {
	f.savedSingle = append(f.savedSingle, result)
	return int64(len(f.savedSingle)), nil
}

func (f *fakeStore) LogKeyUsage(_ context.Context, usage repository.KeyUsage) error {
	f.usages = append(f.usages, usage)
	return nil
}

func (f *fakeStore) FindByTaskID(_ context.Context, taskID string) (domain.BatchResult, error) {
	if res, ok := f.batchByTaskID[taskID]; ok {
		return res, nil
	}
	return domain.BatchResult{}, gorm.ErrRecordNotFound
}

func (f *fakeStore) FindSingleByTaskID(_ context.Context, taskID string) (domain.SingleCharResult, error) {
	for _, s := range f.savedSingle {
		if s.TaskID == taskID {
			return s, nil
		}
	}
	return domain.SingleCharResult{}, gorm.ErrRecordNotFound
}

func (f *fakeStore) FindRecentHomeworks(_ context.Context, _ int64) ([]domain.HomeworkRecord, error) {
	return nil, nil
}

func (f *fakeStore) CountRecentCalls(_ context.Context, _ int64, _ int) (int64, error) {
	return f.recentCalls, nil
}

func (f *fakeStore) GrowthCurve(_ context.Context, _ int64, _ string) ([]domain.CharAnalysis, error) {
	return nil, nil
}

func (f *fakeStore) ListTemplates(_ context.Context) ([]domain.CopybookTemplate, error) {
	return f.templates, nil
}

func (f *fakeStore) FindTemplateByID(_ context.Context, id int64) (domain.CopybookTemplate, error) {
	for _, tpl := range f.templates {
		if tpl.ID == id {
			return tpl, nil
		}
	}
	return domain.CopybookTemplate{}, gorm.ErrRecordNotFound
}

type fakeProvider struct {
	reply string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) AnalyzeImage(_ context.Context, _, _, _ string) (string, error) {
	return f.reply, nil
}

type fakeFactory struct {
	p provider.Provider
}

func (f *fakeFactory) Get() (provider.Provider, error) { return f.p, nil }

func newTestServer(t *testing.T, store *fakeStore, reply string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := dispatcher.DefaultConfig()
	cfg.KeyBorrowTimeoutSeconds = 1
	cfg.RetryCount = 0
	m := dispatcher.InitModule(cfg, nil)
	m.Pool.AddKeys([]string{"k1"})

	engine := service.NewGradingEngine(&fakeFactory{p: &fakeProvider{reply: reply}}, m.Svc,
		service.Config{MaxImageSize: 512})
	hdl := NewHandler(engine, store, service.NewGridCropper(), nil, "fake")

	server := gin.New()
	hdl.PublicRoutes(server)
	return server
}

func uploadRequest(t *testing.T, path string, fields map[string]string, fileBytes []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "homework.png")
	require.NoError(t, err)
	_, err = fw.Write(fileBytes)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func doJSON(t *testing.T, server *gin.Engine, req *http.Request) (int, Result) {
	t.Helper()
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	var res Result
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &res))
	return recorder.Code, res
}

func TestAnalyze_Success(t *testing.T) {
	store := &fakeStore{}
	server := newTestServer(t, store, canonicalReply)

	req := uploadRequest(t, "/api/homework/analyze", map[string]string{"userId": "42"}, smallPNG(t))
	status, res := doJSON(t, server, req)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", res.Code)

	data, err := json.Marshal(res.Data)
	require.NoError(t, err)
	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, 20, result.TotalCharacters)
	assert.Equal(t, 73, result.AvgOverallScore)
	assert.True(t, strings.HasPrefix(result.ImageID, "img-"))

	// 结果与调用流水都已落库
	require.Len(t, store.savedBatch, 1)
	require.Len(t, store.usages, 1)
	assert.True(t, store.usages[0].Success)
	assert.Equal(t, "whole-page", store.usages[0].Model)
}

func TestAnalyze_FloodLimited(t *testing.T) {
	store := &fakeStore{recentCalls: 20}
	server := newTestServer(t, store, canonicalReply)

	req := uploadRequest(t, "/api/homework/analyze", map[string]string{"userId": "42"}, smallPNG(t))
	status, res := doJSON(t, server, req)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "RATE_LIMITED", res.Code)
	// 没有触发任何 AI 调用和落库
	assert.Empty(t, store.savedBatch)
	assert.Empty(t, store.usages)
}

func TestAnalyze_AnonymousBypassesFloodCheck(t *testing.T) {
	store := &fakeStore{recentCalls: 100}
	server := newTestServer(t, store, canonicalReply)

	// 不带 userId，防刷检查直接放行
	req := uploadRequest(t, "/api/homework/analyze", nil, smallPNG(t))
	status, res := doJSON(t, server, req)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", res.Code)
}

func TestAnalyze_FileTooLarge(t *testing.T) {
	store := &fakeStore{}
	server := newTestServer(t, store, canonicalReply)

	big := make([]byte, maxUploadBytes+1)
	req := uploadRequest(t, "/api/homework/analyze", nil, big)
	status, res := doJSON(t, server, req)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "FILE_TOO_LARGE", res.Code)
}

func TestAnalyze_WithTemplateAttachesCrops(t *testing.T) {
	store := &fakeStore{
		templates: []domain.CopybookTemplate{
			{ID: 1, Name: "田字格", GridType: domain.GridTian, GridRows: 4, GridCols: 5, HeaderRatio: 0},
		},
	}
	server := newTestServer(t, store, canonicalReply)

	req := uploadRequest(t, "/api/homework/analyze",
		map[string]string{"templateId": "1"}, smallPNG(t))
	status, res := doJSON(t, server, req)

	require.Equal(t, http.StatusOK, status)
	data, _ := json.Marshal(res.Data)
	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Analyses, 1)
	// 第3行第3列在 4x5 网格内，应裁出截图
	assert.NotEmpty(t, result.Analyses[0].CharImageBase64)
}

func TestListTemplates(t *testing.T) {
	store := &fakeStore{
		templates: []domain.CopybookTemplate{
			{ID: 1, Name: "田字格 8x6", GridType: domain.GridTian, GridRows: 8, GridCols: 6},
		},
	}
	server := newTestServer(t, store, canonicalReply)

	req := httptest.NewRequest(http.MethodGet, "/api/homework/templates", nil)
	status, res := doJSON(t, server, req)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", res.Code)
}

func TestGetResult_NotFound(t *testing.T) {
	server := newTestServer(t, &fakeStore{}, canonicalReply)

	req := httptest.NewRequest(http.MethodGet, "/api/homework/task-missing", nil)
	status, res := doJSON(t, server, req)

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", res.Code)
}

func TestGetResult_Found(t *testing.T) {
	store := &fakeStore{
		batchByTaskID: map[string]domain.BatchResult{
			"task-abc": {TaskID: "task-abc", TotalCharacters: 12},
		},
	}
	server := newTestServer(t, store, canonicalReply)

	req := httptest.NewRequest(http.MethodGet, "/api/homework/task-abc", nil)
	status, res := doJSON(t, server, req)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", res.Code)
}

func TestAnalyzeStream_EventSequence(t *testing.T) {
	store := &fakeStore{}
	server := newTestServer(t, store, canonicalReply)

	req := uploadRequest(t, "/api/homework/analyze-stream", nil, smallPNG(t))
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	body := recorder.Body.String()
	startIdx := strings.Index(body, "event:start")
	resultIdx := strings.Index(body, "event:result")
	assert.GreaterOrEqual(t, startIdx, 0, "应有 start 事件: %s", body)
	assert.Greater(t, resultIdx, startIdx, "result 事件应在 start 之后")
	assert.NotContains(t, body, "event:error")

	// 流式路径同样落库
	require.Len(t, store.savedBatch, 1)
}

func TestAnalyzeStream_FloodLimited(t *testing.T) {
	store := &fakeStore{recentCalls: 20}
	server := newTestServer(t, store, canonicalReply)

	req := uploadRequest(t, "/api/homework/analyze-stream",
		map[string]string{"userId": "7"}, smallPNG(t))
	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	body := recorder.Body.String()
	assert.Contains(t, body, "event:error")
	assert.NotContains(t, body, "event:result")
}
