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

package provider

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var _ StreamProvider = (*OpenAIProvider)(nil)

// OpenAIProvider OpenAI 兼容的 chat-completions 接口，支持阻塞式和流式两种调用。
// 客户端在所有请求间复用，Key 每次调用用 option.WithAPIKey 注入，由池轮转决定。
type OpenAIProvider struct {
	cfg    Config
	client *openai.Client
	// 阻塞调用带读超时；流式调用不设整体超时，由调用方 ctx 控制
	blockingOpts []option.RequestOption
	logger       *elog.Component
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	readTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	baseURL := cfg.OpenAI.BaseURL
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Transport: transport}),
	)
	return &OpenAIProvider{
		cfg:    cfg,
		client: client,
		blockingOpts: []option.RequestOption{
			option.WithHTTPClient(&http.Client{Transport: transport, Timeout: readTimeout}),
		},
		logger: elog.DefaultLogger.With(elog.FieldComponent("OpenAIProvider")),
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) AnalyzeImage(ctx context.Context, imageBase64, prompt, apiKey string) (string, error) {
	opts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, p.blockingOpts...)
	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(imageBase64, prompt), opts...)
	if err != nil {
		p.logger.Error("OpenAI API 调用失败", elog.FieldErr(err))
		return "", err
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", ErrEmptyContent
	}
	result := completion.Choices[0].Message.Content
	p.logger.Info("OpenAI 响应完成", elog.Int("chars", len([]rune(result))))
	return result, nil
}

func (p *OpenAIProvider) AnalyzeImageStream(ctx context.Context, imageBase64, prompt, apiKey string,
	onToken func(token string)) (string, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx,
		p.buildParams(imageBase64, prompt), option.WithAPIKey(apiKey))

	acc := openai.ChatCompletionAccumulator{}
	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 {
			continue
		}
		// FinishReason 非空说明结束了
		if chunk.Choices[0].FinishReason != "" {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		onToken(delta)
	}
	if err := stream.Err(); err != nil {
		p.logger.Error("获取 OpenAI 流数据失败", elog.FieldErr(err))
		return "", err
	}

	p.logger.Info("流结束",
		elog.Int("chars", len([]rune(full.String()))),
		elog.Int64("tokens", int64(acc.Usage.TotalTokens)))
	if full.Len() == 0 {
		return "", ErrEmptyContent
	}
	return full.String(), nil
}

func (p *OpenAIProvider) buildParams(imageBase64, prompt string) openai.ChatCompletionNewParams {
	imagePart := openai.ChatCompletionContentPartImageParam{
		Type: openai.F(openai.ChatCompletionContentPartImageTypeImageURL),
		ImageURL: openai.F(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    openai.F("data:image/jpeg;base64," + imageBase64),
			Detail: openai.F(openai.ChatCompletionContentPartImageImageURLDetailHigh),
		}),
	}
	return openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessageParts(openai.TextPart(prompt), imagePart),
		}),
		Model:       openai.F(p.cfg.OpenAI.Model),
		MaxTokens:   openai.F(int64(p.cfg.OpenAI.MaxTokens)),
		Temperature: openai.F(p.cfg.OpenAI.Temperature),
	}
}
