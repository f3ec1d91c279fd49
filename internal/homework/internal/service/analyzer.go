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
	"fmt"
	"strings"

	"github.com/gotomicro/ego/core/elog"
	"github.com/hanmo/hanmo/internal/homework/internal/domain"
	"github.com/hanmo/hanmo/internal/homework/internal/service/prompt"
	"github.com/hanmo/hanmo/internal/homework/internal/service/provider"
)

// multiAgentAnalyze 多 Agent 单字分析：A(结构) + B(笔画) + C(综合评语)。
// 三次调用共用同一个租借中的 Key，任何一步失败都向上抛，由调度器重试。
func (e *GradingEngine) multiAgentAnalyze(ctx context.Context, p provider.Provider,
	imageB64, apiKey, taskID string) (domain.SingleCharResult, error) {
	e.logger.Debug("使用多 Agent 分析模式", elog.String("taskId", taskID))

	structureResp, err := p.AnalyzeImage(ctx, imageB64, prompt.StructureAnalysis, apiKey)
	if err != nil {
		return domain.SingleCharResult{}, err
	}
	strokeResp, err := p.AnalyzeImage(ctx, imageB64, prompt.StrokeAnalysis, apiKey)
	if err != nil {
		return domain.SingleCharResult{}, err
	}
	commentPrompt := fmt.Sprintf(prompt.CommentGenerator, structureResp, strokeResp)
	commentResp, err := p.AnalyzeImage(ctx, imageB64, commentPrompt, apiKey)
	if err != nil {
		return domain.SingleCharResult{}, err
	}

	return mergeMultiAgent(structureResp, strokeResp, commentResp, taskID), nil
}

// mergeMultiAgent 三份 JSON 回复合成一个结果，解析失败的维度落默认值。
func mergeMultiAgent(structureResp, strokeResp, commentResp, taskID string) domain.SingleCharResult {
	result := domain.SingleCharResult{
		TaskID:         taskID,
		RecognizedChar: "?",
		StructureScore: defaultScore,
		StrokeScore:    defaultScore,
		BalanceScore:   defaultScore,
		SpacingScore:   defaultScore,
		OverallScore:   defaultScore,
		OverallComment: "小朋友写得不错，继续加油练习！",
		Suggestion:     "建议多对照字帖练习，注意笔画的起收。",
	}

	if m := parseJSONWithRepair(structureResp); m != nil {
		result.StructureScore = jsonInt(m, "structureScore", defaultScore)
		result.StructureDetail = jsonString(m, "structureComment", "")
	} else {
		result.StructureDetail = fallbackDetail(structureResp, "structureComment")
	}
	if m := parseJSONWithRepair(strokeResp); m != nil {
		result.StrokeScore = jsonInt(m, "strokeScore", defaultScore)
		result.StrokeDetail = jsonString(m, "strokeComment", "")
	} else {
		result.StrokeDetail = fallbackDetail(strokeResp, "strokeComment")
	}
	if m := parseJSONWithRepair(commentResp); m != nil {
		result.OverallScore = jsonInt(m, "overallScore", defaultScore)
		result.OverallComment = jsonString(m, "overallComment", result.OverallComment)
		result.Suggestion = jsonString(m, "suggestion", result.Suggestion)
	}
	return result
}

// fallbackDetail JSON 彻底解析不动时正则硬抽；抽不到时不超过 50 字的回复原样使用，否则留空。
func fallbackDetail(resp, key string) string {
	if s := extractJSONString(resp, key, ""); s != "" {
		return s
	}
	if s := strings.TrimSpace(resp); len([]rune(s)) <= 50 {
		return s
	}
	return ""
}
