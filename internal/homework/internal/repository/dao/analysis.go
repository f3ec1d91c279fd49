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

package dao

import (
	"context"

	"github.com/ego-component/egorm"
)

type AnalysisDAO interface {
	SaveBatch(ctx context.Context, analyses []Analysis) error
	FindByHomeworkID(ctx context.Context, homeworkID int64) ([]Analysis, error)
	// FindGrowthCurve 某用户某个字的历史分析，按时间升序
	FindGrowthCurve(ctx context.Context, uid int64, charName string) ([]Analysis, error)
}

type GORMAnalysisDAO struct {
	db *egorm.Component
}

func NewGORMAnalysisDAO(db *egorm.Component) AnalysisDAO {
	return &GORMAnalysisDAO{db: db}
}

func (dao *GORMAnalysisDAO) SaveBatch(ctx context.Context, analyses []Analysis) error {
	if len(analyses) == 0 {
		return nil
	}
	return dao.db.WithContext(ctx).Create(&analyses).Error
}

func (dao *GORMAnalysisDAO) FindByHomeworkID(ctx context.Context, homeworkID int64) ([]Analysis, error) {
	var res []Analysis
	err := dao.db.WithContext(ctx).
		Where("homework_id = ?", homeworkID).
		Order("char_index ASC").
		Find(&res).Error
	return res, err
}

func (dao *GORMAnalysisDAO) FindGrowthCurve(ctx context.Context, uid int64, charName string) ([]Analysis, error) {
	var res []Analysis
	err := dao.db.WithContext(ctx).
		Joins("JOIN t_homework ON t_homework.id = t_analysis.homework_id").
		Where("t_homework.user_id = ? AND t_analysis.recognized_char = ?", uid, charName).
		Order("t_analysis.id ASC").
		Find(&res).Error
	return res, err
}

// Analysis 分析结果表：每个字的批改详情，支撑成长曲线。
type Analysis struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	HomeworkID     int64  `gorm:"index:idx_homework_id;not null;comment:所属作业ID"`
	CharIndex      int    `gorm:"comment:字符在整页中的序号"`
	RecognizedChar string `gorm:"type:varchar(8);index:idx_recognized_char;comment:识别出的汉字"`
	Row            int    `gorm:"column:grid_row;comment:网格行号，1起，0未知"`
	Column         int    `gorm:"column:grid_col;comment:网格列号，1起，0未知"`
	StructureScore int    `gorm:"comment:结构评分"`
	StrokeScore    int    `gorm:"comment:笔画评分"`
	OverallScore   int    `gorm:"comment:综合评分"`
	ResultJSON     string `gorm:"type:text;comment:完整分析结果JSON"`
	OverallComment string `gorm:"type:text"`
	Suggestion     string `gorm:"type:text"`
	// 缓存键：字帖ID:汉字
	CacheKey  string `gorm:"type:varchar(128);index:idx_cache_key"`
	CreatedAt string `gorm:"type:varchar(19)"`
}

func (Analysis) TableName() string {
	return "t_analysis"
}
