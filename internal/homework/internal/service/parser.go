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
	"regexp"
	"strconv"
	"strings"

	"github.com/hanmo/hanmo/internal/homework/internal/domain"
)

// 批改回复解析。AI 按 prompt 里约定的可读模板输出，这里用正则逐段抽取。
// 解析永远不失败：每个字段都有兜底默认值，中英文标点等价对待。

const (
	defaultScore       = 60
	defaultSummary     = "继续加油练习！"
	defaultDetail      = "暂无分析"
	defaultSuggestion  = "多加练习"
	defaultCharComment = "继续加油"
	maxSummaryRunes    = 200
	maxSectionRunes    = 500
)

var (
	// 共识别 20 个汉字（4 行 5 列）：飞,流,...
	overviewGridRe = regexp.MustCompile(`共识别\s*(\d+)\s*个汉字\s*[（(]\s*(\d+)\s*行\s*(\d+)\s*列\s*[）)]`)
	// 共识别 20 个汉字：飞,流,...
	overviewRe = regexp.MustCompile(`共识别\s*(\d+)\s*个汉字`)
	// 结构：73 分 | 笔画：71 分 | 综合：73 分
	pageScoresRe = regexp.MustCompile(`结构\s*[：:]\s*(\d+)\s*分\s*[|｜│]\s*笔画\s*[：:]\s*(\d+)\s*分\s*[|｜│]\s*综合\s*[：:]\s*(\d+)\s*分`)
	// 【总评】之后到下一个【 或结尾
	summaryRe = regexp.MustCompile(`【总评】([^【]*)`)
	// 1.「疑」（第3行第3列，综合 61 分）；位置段可缺省
	problemHeaderRe = regexp.MustCompile(`(?m)(\d+)\s*[.、．]\s*[「『]([^」』]+)[」』]\s*(?:[（(]\s*第\s*(\d+)\s*行\s*第\s*(\d+)\s*列\s*[，,]\s*)?[^\n]*?综合\s*(\d+)\s*分`)
	// 块内字段
	charStructureRe  = regexp.MustCompile(`结构\s*[（(]\s*(\d+)\s*分\s*[）)]\s*[：:]\s*([^\n]+)`)
	charStrokeRe     = regexp.MustCompile(`笔画\s*[（(]\s*(\d+)\s*分\s*[）)]\s*[：:]\s*([^\n]+)`)
	charSuggestionRe = regexp.MustCompile(`建议\s*[：:]\s*([^\n]+)`)
	summaryMarkRe    = regexp.MustCompile(`【总评】`)

	// 单字精批
	singleCharRe   = regexp.MustCompile(`字\s*[：:]\s*(\S)`)
	singleScoresRe = regexp.MustCompile(`结构\s*[：:]\s*(\d+)\s*分\s*[|｜│]\s*笔画\s*[：:]\s*(\d+)\s*分\s*[|｜│]\s*重心\s*[：:]\s*(\d+)\s*分\s*[|｜│]\s*间架\s*[：:]\s*(\d+)\s*分\s*[|｜│]\s*综合\s*[：:]\s*(\d+)\s*分`)
	sectionRe      = regexp.MustCompile(`【([^】]+)】([^【]*)`)
)

// parseWholePageText 整页批改回复 → BatchResult。
func parseWholePageText(text, taskID string) domain.BatchResult {
	result := domain.BatchResult{
		TaskID:            taskID,
		AvgStructureScore: defaultScore,
		AvgStrokeScore:    defaultScore,
		AvgOverallScore:   defaultScore,
		SummaryComment:    defaultSummary,
	}

	if m := overviewGridRe.FindStringSubmatch(text); m != nil {
		result.TotalCharacters = atoi(m[1])
		result.GridRows = atoi(m[2])
		result.GridCols = atoi(m[3])
	} else if m = overviewRe.FindStringSubmatch(text); m != nil {
		result.TotalCharacters = atoi(m[1])
	}

	if m := pageScoresRe.FindStringSubmatch(text); m != nil {
		result.AvgStructureScore = atoi(m[1])
		result.AvgStrokeScore = atoi(m[2])
		result.AvgOverallScore = atoi(m[3])
	}

	if m := summaryRe.FindStringSubmatch(text); m != nil {
		if s := strings.TrimSpace(m[1]); s != "" {
			result.SummaryComment = truncateRunes(s, maxSummaryRunes)
		}
	}

	result.Analyses = parseProblemChars(text)
	return result
}

// parseProblemChars 按问题字小标题切块，块内再抽结构/笔画/建议。
func parseProblemChars(text string) []domain.CharAnalysis {
	headers := problemHeaderRe.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		return nil
	}

	// 块到【总评】为止
	summaryStart := len(text)
	if loc := summaryMarkRe.FindStringIndex(text); loc != nil {
		summaryStart = loc[0]
	}

	analyses := make([]domain.CharAnalysis, 0, len(headers))
	for i, h := range headers {
		if h[0] >= summaryStart {
			continue
		}
		blockEnd := summaryStart
		if i+1 < len(headers) && headers[i+1][0] < blockEnd {
			blockEnd = headers[i+1][0]
		}
		block := text[h[0]:blockEnd]

		a := domain.CharAnalysis{
			CharIndex:        len(analyses),
			RecognizedChar:   group(text, h, 2),
			Row:              atoi(group(text, h, 3)),
			Column:           atoi(group(text, h, 4)),
			OverallScore:     atoi(group(text, h, 5)),
			StructureScore:   defaultScore,
			StructureComment: defaultDetail,
			StrokeScore:      defaultScore,
			StrokeComment:    defaultDetail,
			OverallComment:   defaultCharComment,
			Suggestion:       defaultSuggestion,
		}
		if m := charStructureRe.FindStringSubmatch(block); m != nil {
			a.StructureScore = atoi(m[1])
			a.StructureComment = strings.TrimSpace(m[2])
		}
		if m := charStrokeRe.FindStringSubmatch(block); m != nil {
			a.StrokeScore = atoi(m[1])
			a.StrokeComment = strings.TrimSpace(m[2])
		}
		if m := charSuggestionRe.FindStringSubmatch(block); m != nil {
			a.Suggestion = strings.TrimSpace(m[1])
		}
		analyses = append(analyses, a)
	}
	return analyses
}

// parseSingleCharText 单字精批回复 → SingleCharResult。
func parseSingleCharText(text, taskID string) domain.SingleCharResult {
	result := domain.SingleCharResult{
		TaskID:         taskID,
		RecognizedChar: "?",
		StructureScore: defaultScore,
		StrokeScore:    defaultScore,
		BalanceScore:   defaultScore,
		SpacingScore:   defaultScore,
		OverallScore:   defaultScore,
	}

	if m := singleCharRe.FindStringSubmatch(text); m != nil {
		result.RecognizedChar = m[1]
	}
	if m := singleScoresRe.FindStringSubmatch(text); m != nil {
		result.StructureScore = atoi(m[1])
		result.StrokeScore = atoi(m[2])
		result.BalanceScore = atoi(m[3])
		result.SpacingScore = atoi(m[4])
		result.OverallScore = atoi(m[5])
	}

	for _, m := range sectionRe.FindAllStringSubmatch(text, -1) {
		body := truncateRunes(strings.TrimSpace(m[2]), maxSectionRunes)
		switch m[1] {
		case "结构分析":
			result.StructureDetail = body
		case "笔画分析":
			result.StrokeDetail = body
		case "重心分析":
			result.BalanceDetail = body
		case "间架分析":
			result.SpacingDetail = body
		case "总评":
			result.OverallComment = body
		case "练习建议":
			result.Suggestion = body
		}
	}
	return result
}

func group(text string, idx []int, n int) string {
	if 2*n+1 >= len(idx) || idx[2*n] < 0 {
		return ""
	}
	return text[idx[2*n]:idx[2*n+1]]
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
