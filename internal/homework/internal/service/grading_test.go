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
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hanmo/hanmo/internal/dispatcher"
	"github.com/hanmo/hanmo/internal/homework/internal/domain"
	"github.com/hanmo/hanmo/internal/homework/internal/service/provider"
	providermocks "github.com/hanmo/hanmo/internal/homework/internal/service/provider/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const canonicalReply = `共识别 20 个汉字（4 行 5 列）：飞,流,直,下,三,千,尺,疑,是,银,河,落,九,天,白,日,依,山,尽,黄
结构：73 分 | 笔画：71 分 | 综合：73 分
【重点点评】
1.「疑」（第3行第3列，综合 61 分）
结构（62 分）：左右失衡
笔画（60 分）：撇画软弱
建议：对照字帖临摹
【总评】整体有进步，继续努力！`

type fakeFactory struct {
	p provider.Provider
}

func (f *fakeFactory) Get() (provider.Provider, error) {
	return f.p, nil
}

// fakeStreamProvider 按设定逐块吐 token，可注入首块前延迟和错误
type fakeStreamProvider struct {
	chunks     []string
	firstDelay time.Duration
	err        error
}

func (f *fakeStreamProvider) Name() string { return "fake" }

func (f *fakeStreamProvider) AnalyzeImage(ctx context.Context, imageBase64, prompt, apiKey string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return strings.Join(f.chunks, ""), nil
}

func (f *fakeStreamProvider) AnalyzeImageStream(ctx context.Context, imageBase64, prompt, apiKey string,
	onToken func(string)) (string, error) {
	if f.firstDelay > 0 {
		time.Sleep(f.firstDelay)
	}
	if f.err != nil {
		return "", f.err
	}
	var full strings.Builder
	for _, chunk := range f.chunks {
		full.WriteString(chunk)
		onToken(chunk)
	}
	return full.String(), nil
}

// eventRecorder 记录事件顺序，回调来自不同 goroutine
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) add(kind, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+payload)
}

func (r *eventRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestEngine(t *testing.T, p provider.Provider, keys []string) (*GradingEngine, *dispatcher.Module) {
	t.Helper()
	cfg := dispatcher.DefaultConfig()
	cfg.KeyBorrowTimeoutSeconds = 1
	cfg.RetryCount = 0
	m := dispatcher.InitModule(cfg, nil)
	m.Pool.AddKeys(keys)
	engine := NewGradingEngine(&fakeFactory{p: p}, m.Svc, Config{MaxImageSize: 512})
	return engine, m
}

func TestGradeWholePageStream_EventOrder(t *testing.T) {
	p := &fakeStreamProvider{
		chunks:     []string{"A", "B", "C"},
		firstDelay: 80 * time.Millisecond,
	}
	engine, m := newTestEngine(t, p, []string{"k1"})
	engine.hbInterval = 20 * time.Millisecond

	rec := &eventRecorder{}
	var result domain.BatchResult
	done := make(chan struct{})
	engine.GradeWholePageStream(context.Background(), makePNG(t, 64, 64),
		StreamCallbacks{
			OnThinking: func(msg string) { rec.add("thinking", msg) },
			OnToken:    func(token string) { rec.add("token", token) },
			OnError:    func(msg string) { rec.add("error", msg) },
		},
		func(r domain.BatchResult) {
			result = r
			close(done)
		})
	<-done

	events := rec.all()
	// token 严格按上游顺序到达
	var tokens []string
	firstTokenIdx := -1
	for i, e := range events {
		if strings.HasPrefix(e, "token:") {
			if firstTokenIdx < 0 {
				firstTokenIdx = i
			}
			tokens = append(tokens, strings.TrimPrefix(e, "token:"))
		}
	}
	assert.Equal(t, []string{"A", "B", "C"}, tokens)

	// 首块前有延迟，至少观察到一条思考心跳，且全部在首个 token 之前
	var thinkingCount int
	for i, e := range events {
		if strings.HasPrefix(e, "thinking:") {
			thinkingCount++
			assert.Less(t, i, firstTokenIdx, "token 之后不允许再有 thinking")
		}
		assert.False(t, strings.HasPrefix(e, "error:"), "成功路径不应出现 error 事件")
	}
	assert.GreaterOrEqual(t, thinkingCount, 1)

	// 不是模板格式的回复落默认值，任务 ID 带前缀
	assert.True(t, strings.HasPrefix(result.TaskID, "task-"))
	assert.Equal(t, 0, result.TotalCharacters)
	assert.NotEmpty(t, result.CreatedAt)

	// Key 已归还
	assert.Equal(t, int64(1), m.Pool.AvailableCount())
	assert.Equal(t, int64(0), m.Pool.FailedCount())
}

func TestGradeWholePageStream_CanonicalReplyParsed(t *testing.T) {
	p := &fakeStreamProvider{chunks: []string{canonicalReply}}
	engine, _ := newTestEngine(t, p, []string{"k1"})

	var result domain.BatchResult
	got := false
	engine.GradeWholePageStream(context.Background(), makePNG(t, 64, 64),
		StreamCallbacks{
			OnToken: func(string) {},
			OnError: func(msg string) { t.Fatalf("意外的 error 事件: %s", msg) },
		},
		func(r domain.BatchResult) {
			result = r
			got = true
		})

	require.True(t, got)
	assert.Equal(t, 20, result.TotalCharacters)
	assert.Equal(t, 4, result.GridRows)
	assert.Equal(t, 5, result.GridCols)
	require.Len(t, result.Analyses, 1)
	assert.Equal(t, "疑", result.Analyses[0].RecognizedChar)
}

func TestGradeWholePageStream_UpstreamError(t *testing.T) {
	p := &fakeStreamProvider{err: errors.New("HTTP 500")}
	engine, m := newTestEngine(t, p, []string{"k1"})

	var errMsg string
	engine.GradeWholePageStream(context.Background(), makePNG(t, 64, 64),
		StreamCallbacks{
			OnToken: func(string) {},
			OnError: func(msg string) { errMsg = msg },
		},
		func(domain.BatchResult) { t.Fatal("失败路径不应交付 result") })

	assert.Contains(t, errMsg, "批改失败")
	// 出错的 Key 进失败队列等待冷却
	assert.Equal(t, int64(0), m.Pool.AvailableCount())
	assert.Equal(t, int64(1), m.Pool.FailedCount())
}

func TestGradeWholePageStream_EmptyContent(t *testing.T) {
	p := &fakeStreamProvider{chunks: nil}
	engine, _ := newTestEngine(t, p, []string{"k1"})

	var errMsg string
	engine.GradeWholePageStream(context.Background(), makePNG(t, 64, 64),
		StreamCallbacks{
			OnToken: func(string) {},
			OnError: func(msg string) { errMsg = msg },
		},
		func(domain.BatchResult) { t.Fatal("空回复不应交付 result") })

	assert.Contains(t, errMsg, "AI 返回空内容")
}

func TestGradeWholePage_Blocking(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := providermocks.NewMockProvider(ctrl)
	mockProvider.EXPECT().
		AnalyzeImage(gomock.Any(), gomock.Any(), gomock.Any(), "k1").
		Return(canonicalReply, nil)

	engine, m := newTestEngine(t, mockProvider, []string{"k1"})

	result, err := engine.GradeWholePage(context.Background(), makePNG(t, 64, 64))
	require.NoError(t, err)
	assert.Equal(t, 20, result.TotalCharacters)
	assert.Equal(t, 73, result.AvgOverallScore)
	assert.Equal(t, "整体有进步，继续努力！", result.SummaryComment)
	assert.NotEmpty(t, result.CreatedAt)
	assert.Equal(t, int64(1), m.Pool.AvailableCount())
}

func TestGradeWholePage_EmptyImage(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeStreamProvider{}, []string{"k1"})

	_, err := engine.GradeWholePage(context.Background(), nil)
	assert.ErrorIs(t, err, dispatcher.ErrTaskFailed)
}

func TestGradeSingleChar_Blocking(t *testing.T) {
	reply := `字：永
结构：85 分 | 笔画：82 分 | 重心：88 分 | 间架：80 分 | 综合：84 分
【总评】写得很好
【练习建议】保持练习`
	p := &fakeStreamProvider{chunks: []string{reply}}
	engine, _ := newTestEngine(t, p, []string{"k1"})

	result, err := engine.GradeSingleChar(context.Background(), makePNG(t, 64, 64))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.TaskID, "single-"))
	assert.Equal(t, "永", result.RecognizedChar)
	assert.Equal(t, 84, result.OverallScore)
	assert.Equal(t, "写得很好", result.OverallComment)
}

func TestGradeSingleChar_MultiAgent(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockProvider := providermocks.NewMockProvider(ctrl)
	gomock.InOrder(
		mockProvider.EXPECT().
			AnalyzeImage(gomock.Any(), gomock.Any(), gomock.Any(), "k1").
			Return(`{"structureScore": 78, "structureComment": "重心稳"}`, nil),
		mockProvider.EXPECT().
			AnalyzeImage(gomock.Any(), gomock.Any(), gomock.Any(), "k1").
			Return(`{"strokeScore": 74, "strokeComment": "行笔流畅"}`, nil),
		mockProvider.EXPECT().
			AnalyzeImage(gomock.Any(), gomock.Any(), gomock.Any(), "k1").
			Return(`{"overallScore": 76, "overallComment": "不错", "suggestion": "保持"}`, nil),
	)

	cfg := dispatcher.DefaultConfig()
	cfg.KeyBorrowTimeoutSeconds = 1
	cfg.RetryCount = 0
	m := dispatcher.InitModule(cfg, nil)
	m.Pool.AddKeys([]string{"k1"})
	engine := NewGradingEngine(&fakeFactory{p: mockProvider}, m.Svc,
		Config{MaxImageSize: 512, MultiAgentEnabled: true})

	result, err := engine.GradeSingleChar(context.Background(), makePNG(t, 64, 64))
	require.NoError(t, err)
	assert.Equal(t, 78, result.StructureScore)
	assert.Equal(t, 74, result.StrokeScore)
	assert.Equal(t, 76, result.OverallScore)
	assert.Equal(t, int64(1), m.Pool.AvailableCount())
}
