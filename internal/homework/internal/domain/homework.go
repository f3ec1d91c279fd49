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

package domain

// CharAnalysis 单个字的分析结果：结构、笔画评分与综合评语。
type CharAnalysis struct {
	// 字符在整页中的序号
	CharIndex int `json:"charIndex"`
	// 识别出的汉字（如果能识别）
	RecognizedChar string `json:"recognizedChar"`
	// 在作业网格中的行号（从 1 开始，从上往下；0 表示未知）
	Row int `json:"row"`
	// 在作业网格中的列号（从 1 开始，从左往右；0 表示未知）
	Column int `json:"column"`
	// 结构评分 (0-100)：重心、间架、比例
	StructureScore   int    `json:"structureScore"`
	StructureComment string `json:"structureComment"`
	// 笔画评分 (0-100)：起笔、行笔、收笔
	StrokeScore   int    `json:"strokeScore"`
	StrokeComment string `json:"strokeComment"`
	// 综合评分 (0-100)
	OverallScore   int    `json:"overallScore"`
	OverallComment string `json:"overallComment"`
	// 改进建议
	Suggestion string `json:"suggestion"`
	// 该字在原图中的截图（Base64 PNG，模板模式下填充）
	CharImageBase64 string `json:"charImageBase64,omitempty"`
}

// BatchResult 整页书法作业的批改结果聚合。
type BatchResult struct {
	TaskID  string `json:"taskId"`
	ImageID string `json:"imageId"`
	// AI 识别出的总字数（来自总览行，缺失时为 0，不从 Analyses 推导）
	TotalCharacters int `json:"totalCharacters"`
	// 网格行列（未解析出时为 0）
	GridRows int `json:"gridRows"`
	GridCols int `json:"gridCols"`
	// 重点点评的问题字，一般 0~5 个
	Analyses []CharAnalysis `json:"analyses"`
	// 整页平均分
	AvgStructureScore int `json:"avgStructureScore"`
	AvgStrokeScore    int `json:"avgStrokeScore"`
	AvgOverallScore   int `json:"avgOverallScore"`
	// 整页总评语（≤200 字）
	SummaryComment string `json:"summaryComment"`
	// 处理耗时（毫秒）
	ProcessingTimeMs int64 `json:"processingTimeMs"`
	// 批改时间，"2006-01-02 15:04:05" 格式
	CreatedAt string `json:"createdAt"`
}

// SingleCharResult 单字精批结果：五个维度的深度分析。
type SingleCharResult struct {
	TaskID         string `json:"taskId"`
	RecognizedChar string `json:"recognizedChar"`

	StructureScore  int    `json:"structureScore"`
	StructureDetail string `json:"structureDetail"`
	StrokeScore     int    `json:"strokeScore"`
	StrokeDetail    string `json:"strokeDetail"`
	// 重心平衡
	BalanceScore  int    `json:"balanceScore"`
	BalanceDetail string `json:"balanceDetail"`
	// 间架布局
	SpacingScore  int    `json:"spacingScore"`
	SpacingDetail string `json:"spacingDetail"`

	OverallScore   int    `json:"overallScore"`
	OverallComment string `json:"overallComment"`
	Suggestion     string `json:"suggestion"`

	CharImageBase64  string `json:"charImageBase64,omitempty"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
	CreatedAt        string `json:"createdAt"`
}

// GridType 字帖网格类型。
type GridType string

const (
	GridTian  GridType = "TIAN"  // 田字格
	GridMi    GridType = "MI"    // 米字格
	GridHui   GridType = "HUI"   // 回宫格
	GridPlain GridType = "PLAIN" // 无格线
)

// CopybookTemplate 字帖模板：行列数加页眉占比，驱动确定性网格裁切。
type CopybookTemplate struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	GridType GridType `json:"gridType"`
	GridRows int      `json:"gridRows"`
	GridCols int      `json:"gridCols"`
	// 页眉（姓名栏等）占整图高度的比例，[0, 0.3]
	HeaderRatio float64 `json:"headerRatio"`
	Description string  `json:"description"`
}

// HomeworkRecord 历史作业条目。
type HomeworkRecord struct {
	ID               int64   `json:"id"`
	TaskID           string  `json:"taskId"`
	Uid              int64   `json:"userId"`
	OriginalFileName string  `json:"originalFileName"`
	CopyBookID       string  `json:"copyBookId"`
	CharCount        int     `json:"charCount"`
	AvgScore         float64 `json:"avgScore"`
	Status           string  `json:"status"`
	ProcessingTimeMs int64   `json:"processingTimeMs"`
	CreatedAt        string  `json:"createdAt"`
}

// Clamp100 DTO 边界上的分数截断，解析层不做截断。
func Clamp100(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
