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
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hanmo/hanmo/internal/homework/internal/domain"
)

// 旧版模型偶尔无视模板输出 JSON，而且长回复经常被 max_tokens 截断。
// 这里沿用三段式兜底：直接解析 → 修复截断再解析 → 正则硬抽。

var (
	danglingKeyRe  = regexp.MustCompile(`,\s*"[^"]*"\s*:?\s*$`)
	trailingJunkRe = regexp.MustCompile(`[,:\s]+$`)
)

// cleanJSONResponse 去掉 markdown 代码块包裹，定位到 JSON 本体。
func cleanJSONResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.IndexByte(cleaned, '\n'); idx > 0 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = cleaned[3:]
		}
	}
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if !strings.HasPrefix(cleaned, "{") && !strings.HasPrefix(cleaned, "[") {
		if idx := strings.IndexByte(cleaned, '{'); idx >= 0 {
			cleaned = cleaned[idx:]
		}
	}
	if cleaned == "" {
		return "{}"
	}
	return cleaned
}

// repairTruncatedJSON 修复被截断的 JSON：补字符串引号、清掉悬空属性、
// 用栈按后进先出顺序补全未闭合的括号。
func repairTruncatedJSON(raw string) string {
	if raw == "" {
		return "{}"
	}

	// 结尾停在字符串中间时先闭合引号
	if inString, _ := scanJSON(raw); inString {
		raw += `"`
	}

	// 悬空的 "key" 或 "key": 以及残留的尾部逗号冒号
	raw = danglingKeyRe.ReplaceAllString(raw, "")
	raw = trailingJunkRe.ReplaceAllString(raw, "")

	_, stack := scanJSON(raw)
	var sb strings.Builder
	sb.WriteString(raw)
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i])
	}
	return sb.String()
}

// scanJSON 线性扫描：返回结尾是否在字符串内，以及未闭合括号对应的关闭符栈。
func scanJSON(s string) (inString bool, stack []byte) {
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				stack = append(stack, '}')
			}
		case '[':
			if !inString {
				stack = append(stack, ']')
			}
		case '}', ']':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return inString, stack
}

// tryParseJSON 解析失败返回 nil，不抛错。
func tryParseJSON(text string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil
	}
	return m
}

// parseJSONWithRepair 清理 → 解析 → 修复再解析，都失败返回 nil。
func parseJSONWithRepair(response string) map[string]any {
	cleaned := cleanJSONResponse(response)
	if m := tryParseJSON(cleaned); m != nil {
		return m
	}
	return tryParseJSON(repairTruncatedJSON(cleaned))
}

func jsonInt(m map[string]any, key string, def int) int {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return def
}

func jsonString(m map[string]any, key, def string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && s != "" && s != "null" {
			return s
		}
	}
	return def
}

// parseWholePageJSON 旧版 JSON 格式回复 → BatchResult。
// 三段式：直接解析 → 修复截断再解析 → 正则硬抽。
func parseWholePageJSON(response, taskID string) domain.BatchResult {
	cleaned := cleanJSONResponse(response)
	m := tryParseJSON(cleaned)
	if m == nil {
		m = tryParseJSON(repairTruncatedJSON(cleaned))
	}
	if m == nil {
		return extractBatchWithRegex(cleaned, taskID)
	}

	result := domain.BatchResult{
		TaskID:            taskID,
		TotalCharacters:   jsonInt(m, "totalCharCount", 0),
		AvgStructureScore: jsonInt(m, "overallStructureScore", defaultScore),
		AvgStrokeScore:    jsonInt(m, "overallStrokeScore", defaultScore),
		AvgOverallScore:   jsonInt(m, "overallScore", defaultScore),
		SummaryComment:    jsonString(m, "summaryComment", defaultSummary),
	}

	if arr, ok := m["problemChars"].([]any); ok {
		for _, item := range arr {
			node, ok := item.(map[string]any)
			if !ok {
				continue
			}
			// 不完整的条目至少要有字名
			charName := jsonString(node, "char", "")
			if charName == "" {
				continue
			}
			result.Analyses = append(result.Analyses, domain.CharAnalysis{
				CharIndex:        len(result.Analyses),
				RecognizedChar:   charName,
				Row:              jsonInt(node, "row", 0),
				Column:           jsonInt(node, "col", 0),
				StructureScore:   jsonInt(node, "structureScore", defaultScore),
				StructureComment: jsonString(node, "structureComment", defaultDetail),
				StrokeScore:      jsonInt(node, "strokeScore", defaultScore),
				StrokeComment:    jsonString(node, "strokeComment", defaultDetail),
				OverallScore:     jsonInt(node, "overallScore", defaultScore),
				OverallComment:   jsonString(node, "overallComment", defaultCharComment),
				Suggestion:       jsonString(node, "suggestion", defaultSuggestion),
			})
		}
	}
	return result
}

var problemCharNameRe = regexp.MustCompile(`"char"\s*:\s*"([^"]+)"`)

// extractBatchWithRegex JSON 完全修不好时的最后手段。
func extractBatchWithRegex(text, taskID string) domain.BatchResult {
	structure := extractJSONInt(text, "overallStructureScore", defaultScore)
	stroke := extractJSONInt(text, "overallStrokeScore", defaultScore)
	overall := extractJSONInt(text, "overallScore", defaultScore)

	result := domain.BatchResult{
		TaskID:            taskID,
		TotalCharacters:   extractJSONInt(text, "totalCharCount", 0),
		AvgStructureScore: structure,
		AvgStrokeScore:    stroke,
		AvgOverallScore:   overall,
		SummaryComment:    extractJSONString(text, "summaryComment", "AI 分析结果不完整，请重新提交。"),
	}
	for _, m := range problemCharNameRe.FindAllStringSubmatch(text, -1) {
		result.Analyses = append(result.Analyses, domain.CharAnalysis{
			CharIndex:        len(result.Analyses),
			RecognizedChar:   m[1],
			StructureScore:   structure,
			StructureComment: "AI 输出被截断，暂无详细分析",
			StrokeScore:      stroke,
			StrokeComment:    "AI 输出被截断，暂无详细分析",
			OverallScore:     overall,
			OverallComment:   "此字需要重点练习",
			Suggestion:       "建议对照字帖仔细观察后重新书写",
		})
	}
	return result
}

// extractJSONInt 正则硬抽顶层 "key": 123。
func extractJSONInt(text, key string, def int) int {
	re := regexp.MustCompile(`"` + key + `"\s*:\s*(\d+)`)
	if m := re.FindStringSubmatch(text); m != nil {
		return atoi(m[1])
	}
	return def
}

// extractJSONString 正则硬抽顶层 "key": "value"。
func extractJSONString(text, key, def string) string {
	re := regexp.MustCompile(`"` + key + `"\s*:\s*"([^"]+)"`)
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return def
}
