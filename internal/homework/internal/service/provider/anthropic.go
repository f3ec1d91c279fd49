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
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/gotomicro/ego/core/elog"
)

var _ Provider = (*AnthropicProvider)(nil)

// AnthropicProvider Claude 视觉能力实现（message-style，x-api-key 认证）。
// Key 由池轮转，每次调用用当次借到的 Key 构造客户端。
type AnthropicProvider struct {
	cfg    Config
	logger *elog.Component
}

func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	return &AnthropicProvider{
		cfg:    cfg,
		logger: elog.DefaultLogger.With(elog.FieldComponent("AnthropicProvider")),
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) AnalyzeImage(ctx context.Context, imageBase64, prompt, apiKey string) (string, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.cfg.Anthropic.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(p.cfg.Anthropic.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.cfg.Anthropic.Model),
		MaxTokens: int64(p.cfg.Anthropic.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64("image/jpeg", imageBase64),
				anthropic.NewTextBlock(prompt),
			),
		},
	}
	if p.cfg.Anthropic.Temperature > 0 {
		params.Temperature = anthropic.Float(p.cfg.Anthropic.Temperature)
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		p.logger.Error("Anthropic API 调用失败", elog.FieldErr(err))
		return "", err
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyContent
	}
	p.logger.Debug("Anthropic 响应完成", elog.Int("chars", len([]rune(sb.String()))))
	return sb.String(), nil
}
