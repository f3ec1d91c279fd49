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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWholePageText_Canonical(t *testing.T) {
	text := `共识别 20 个汉字（4 行 5 列）：飞,流,直,下,三,千,尺,疑,是,银,河,落,九,天,白,日,依,山,尽,黄
结构：73 分 | 笔画：71 分 | 综合：73 分
【重点点评】
1.「疑」（第3行第3列，综合 61 分）
结构（62 分）：左右失衡，"匕"偏高
笔画（60 分）：撇画软弱
建议：对照字帖临摹
【总评】整体有进步，继续努力！`

	result := parseWholePageText(text, "task-abc")

	assert.Equal(t, "task-abc", result.TaskID)
	assert.Equal(t, 20, result.TotalCharacters)
	assert.Equal(t, 4, result.GridRows)
	assert.Equal(t, 5, result.GridCols)
	assert.Equal(t, 73, result.AvgStructureScore)
	assert.Equal(t, 71, result.AvgStrokeScore)
	assert.Equal(t, 73, result.AvgOverallScore)
	assert.Equal(t, "整体有进步，继续努力！", result.SummaryComment)

	require.Len(t, result.Analyses, 1)
	a := result.Analyses[0]
	assert.Equal(t, "疑", a.RecognizedChar)
	assert.Equal(t, 3, a.Row)
	assert.Equal(t, 3, a.Column)
	assert.Equal(t, 61, a.OverallScore)
	assert.Equal(t, 62, a.StructureScore)
	assert.Equal(t, `左右失衡，"匕"偏高`, a.StructureComment)
	assert.Equal(t, 60, a.StrokeScore)
	assert.Equal(t, "撇画软弱", a.StrokeComment)
	assert.Equal(t, "对照字帖临摹", a.Suggestion)
}

func TestParseWholePageText_MultipleProblemChars(t *testing.T) {
	text := `共识别 12 个汉字（3 行 4 列）：春,眠,不,觉,晓,处,处,闻,啼,鸟,夜,来
结构：80 分 | 笔画：78 分 | 综合：79 分
【重点点评】
1.「眠」（第1行第2列，综合 65 分）
结构（66 分）：目字旁偏窄
笔画（64 分）：横画不稳
建议：放慢书写速度
2.「晓」（第2行第1列，综合 70 分）
结构（72 分）：右部偏大
笔画（68 分）：竖弯钩无力
建议：练习基本笔画
【总评】大有进步`

	result := parseWholePageText(text, "task-x")
	require.Len(t, result.Analyses, 2)
	assert.Equal(t, 0, result.Analyses[0].CharIndex)
	assert.Equal(t, 1, result.Analyses[1].CharIndex)
	assert.Equal(t, "晓", result.Analyses[1].RecognizedChar)
	assert.Equal(t, 2, result.Analyses[1].Row)
	assert.Equal(t, 1, result.Analyses[1].Column)
	assert.Equal(t, 70, result.Analyses[1].OverallScore)
}

func TestParseWholePageText_OverviewWithoutGrid(t *testing.T) {
	text := `共识别 8 个汉字：上,下,左,右,大,小,多,少
结构：70 分 | 笔画：68 分 | 综合：69 分
【总评】写得不错`

	result := parseWholePageText(text, "t")
	assert.Equal(t, 8, result.TotalCharacters)
	assert.Equal(t, 0, result.GridRows)
	assert.Equal(t, 0, result.GridCols)
	assert.Empty(t, result.Analyses)
}

func TestParseWholePageText_MissingOverview(t *testing.T) {
	// 总览行缺失时总字数是 0，不从问题字数量推导
	text := `结构：70 分 | 笔画：68 分 | 综合：69 分
【重点点评】
1.「大」综合 55 分
建议：重写
【总评】加油`

	result := parseWholePageText(text, "t")
	assert.Equal(t, 0, result.TotalCharacters)
	require.Len(t, result.Analyses, 1)
	assert.Equal(t, "大", result.Analyses[0].RecognizedChar)
	// 位置缺省为 0（未知）
	assert.Equal(t, 0, result.Analyses[0].Row)
	assert.Equal(t, 0, result.Analyses[0].Column)
	assert.Equal(t, 55, result.Analyses[0].OverallScore)
	// 块内没有结构/笔画行，落默认值
	assert.Equal(t, 60, result.Analyses[0].StructureScore)
	assert.Equal(t, "暂无分析", result.Analyses[0].StructureComment)
}

func TestParseWholePageText_EmptyInput(t *testing.T) {
	result := parseWholePageText("", "t")
	assert.Equal(t, 0, result.TotalCharacters)
	assert.Equal(t, 60, result.AvgStructureScore)
	assert.Equal(t, 60, result.AvgStrokeScore)
	assert.Equal(t, 60, result.AvgOverallScore)
	assert.Equal(t, "继续加油练习！", result.SummaryComment)
	assert.Empty(t, result.Analyses)
}

func TestParseWholePageText_SummaryTruncated(t *testing.T) {
	long := strings.Repeat("好", 300)
	result := parseWholePageText("【总评】"+long, "t")
	assert.Len(t, []rune(result.SummaryComment), 200)
}

func TestParseWholePageText_Idempotent(t *testing.T) {
	text := `共识别 5 个汉字（1 行 5 列）：一,二,三,四,五
结构：90 分 | 笔画：88 分 | 综合：89 分
【总评】很棒`
	first := parseWholePageText(text, "t")
	second := parseWholePageText(text, "t")
	assert.Equal(t, first, second)
}

func TestParseSingleCharText_Canonical(t *testing.T) {
	text := `字：永
结构：85 分 | 笔画：82 分 | 重心：88 分 | 间架：80 分 | 综合：84 分
【结构分析】左收右放，比例得当
【笔画分析】起笔果断，收笔略拖沓
【重心分析】重心居中稳定
【间架分析】留白均匀
【总评】永字八法掌握得很好
【练习建议】注意捺画的顿笔`

	result := parseSingleCharText(text, "single-abc")
	assert.Equal(t, "single-abc", result.TaskID)
	assert.Equal(t, "永", result.RecognizedChar)
	assert.Equal(t, 85, result.StructureScore)
	assert.Equal(t, 82, result.StrokeScore)
	assert.Equal(t, 88, result.BalanceScore)
	assert.Equal(t, 80, result.SpacingScore)
	assert.Equal(t, 84, result.OverallScore)
	assert.Equal(t, "左收右放，比例得当", result.StructureDetail)
	assert.Equal(t, "起笔果断，收笔略拖沓", result.StrokeDetail)
	assert.Equal(t, "重心居中稳定", result.BalanceDetail)
	assert.Equal(t, "留白均匀", result.SpacingDetail)
	assert.Equal(t, "永字八法掌握得很好", result.OverallComment)
	assert.Equal(t, "注意捺画的顿笔", result.Suggestion)
}

func TestParseSingleCharText_Defaults(t *testing.T) {
	result := parseSingleCharText("完全不符合模板的回复", "t")
	assert.Equal(t, "?", result.RecognizedChar)
	assert.Equal(t, 60, result.StructureScore)
	assert.Equal(t, 60, result.OverallScore)
	assert.Empty(t, result.StructureDetail)
}

func TestParseSingleCharText_FullWidthPunctuation(t *testing.T) {
	// 全角冒号和全角竖线同样解析
	text := `字：水
结构：75 分 ｜ 笔画：70 分 ｜ 重心：72 分 ｜ 间架：74 分 ｜ 综合：73 分`
	result := parseSingleCharText(text, "t")
	assert.Equal(t, "水", result.RecognizedChar)
	assert.Equal(t, 75, result.StructureScore)
	assert.Equal(t, 73, result.OverallScore)
}
