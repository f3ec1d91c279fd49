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
	"errors"
)

// ErrEmptyContent 上游正常返回但没有任何内容。
var ErrEmptyContent = errors.New("AI 返回空内容")

// Provider AI 视觉分析提供商，适配不同的服务商（OpenAI 兼容、Anthropic 等）。
// apiKey 每次调用单独传入，由上层的 Key 池轮转决定。
//
//go:generate mockgen -source=./type.go -destination=./mocks/provider.mock.go -package=providermocks Provider
type Provider interface {
	// AnalyzeImage 对单张图片发送带视觉的请求，返回完整文本回复。
	AnalyzeImage(ctx context.Context, imageBase64, prompt, apiKey string) (string, error)
	Name() string
}

// StreamProvider 支持流式输出的提供商。
// 每个非空增量经 onToken 同步回调一次，返回值是累计的完整文本。
type StreamProvider interface {
	Provider
	AnalyzeImageStream(ctx context.Context, imageBase64, prompt, apiKey string,
		onToken func(token string)) (string, error)
}

// Config AI 提供商配置，对应配置文件 homework.ai 段。
type Config struct {
	// openai / anthropic
	Provider string `yaml:"provider"`
	// 阻塞调用的读超时（秒）；流式调用由引擎的整体 deadline 约束
	RequestTimeoutSeconds int             `yaml:"requestTimeoutSeconds"`
	OpenAI                OpenAIConfig    `yaml:"openai"`
	Anthropic             AnthropicConfig `yaml:"anthropic"`
}

type OpenAIConfig struct {
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

type AnthropicConfig struct {
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}
