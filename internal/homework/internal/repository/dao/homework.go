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

// 历史作业列表单页条数
const recentHomeworkLimit = 10

type HomeworkDAO interface {
	Save(ctx context.Context, hw Homework) (int64, error)
	FindByTaskID(ctx context.Context, taskID string) (Homework, error)
	FindRecentByUid(ctx context.Context, uid int64) ([]Homework, error)
}

type GORMHomeworkDAO struct {
	db *egorm.Component
}

func NewGORMHomeworkDAO(db *egorm.Component) HomeworkDAO {
	return &GORMHomeworkDAO{db: db}
}

func (dao *GORMHomeworkDAO) Save(ctx context.Context, hw Homework) (int64, error) {
	err := dao.db.WithContext(ctx).Create(&hw).Error
	return hw.ID, err
}

func (dao *GORMHomeworkDAO) FindByTaskID(ctx context.Context, taskID string) (Homework, error) {
	var res Homework
	err := dao.db.WithContext(ctx).Where("task_id = ?", taskID).First(&res).Error
	return res, err
}

func (dao *GORMHomeworkDAO) FindRecentByUid(ctx context.Context, uid int64) ([]Homework, error) {
	var res []Homework
	err := dao.db.WithContext(ctx).
		Where("user_id = ?", uid).
		Order("id DESC").
		Limit(recentHomeworkLimit).
		Find(&res).Error
	return res, err
}

// Homework 作业表：每次上传的书法作业和批改状态。
type Homework struct {
	ID               int64   `gorm:"primaryKey;autoIncrement;comment:作业表自增ID"`
	TaskID           string  `gorm:"type:varchar(64);uniqueIndex:unq_task_id;not null;comment:批改任务ID"`
	UserID           int64   `gorm:"index:idx_user_id;comment:用户ID，0为匿名"`
	OriginalFileName string  `gorm:"type:varchar(256);comment:上传时的文件名"`
	ImagePath        string  `gorm:"type:varchar(512);comment:原图存储路径"`
	CopyBookID       string  `gorm:"type:varchar(64);comment:临摹字帖ID"`
	CharCount        int     `gorm:"comment:识别出的总字数"`
	GridRows         int     `gorm:"comment:网格行数，0未解析"`
	GridCols         int     `gorm:"comment:网格列数，0未解析"`
	AvgScore         float64 `gorm:"comment:整页综合评分"`
	AvgStructure     float64 `gorm:"comment:整页结构评分"`
	AvgStroke        float64 `gorm:"comment:整页笔画评分"`
	SummaryComment   string  `gorm:"type:text;comment:整页总评语"`
	Status           string  `gorm:"type:varchar(16);default:PENDING;comment:批改状态"`
	ProcessingTimeMs int64   `gorm:"comment:处理耗时毫秒"`
	// 统一存 "YYYY-MM-DD HH:MM:SS" 文本，绕开驱动的时间戳差异
	CreatedAt string `gorm:"type:varchar(19);comment:批改时间"`
}

func (Homework) TableName() string {
	return "t_homework"
}

// User 用户表，身份是外部系统给的不透明整数。
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Nickname  string `gorm:"type:varchar(64)"`
	CreatedAt string `gorm:"type:varchar(19)"`
}

func (User) TableName() string {
	return "t_user"
}
