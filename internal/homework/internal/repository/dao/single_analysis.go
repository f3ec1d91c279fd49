package dao

import (
	"context"

	"github.com/ego-component/egorm"
)

type SingleAnalysisDAO interface {
	Save(ctx context.Context, a SingleAnalysis) (int64, error)
	FindByTaskID(ctx context.Context, taskID string) (SingleAnalysis, error)
}

type GORMSingleAnalysisDAO struct {
	db *egorm.Component
}

func NewGORMSingleAnalysisDAO(db *egorm.Component) SingleAnalysisDAO {
	return &GORMSingleAnalysisDAO{db: db}
}

func (dao *GORMSingleAnalysisDAO) Save(ctx context.Context, a SingleAnalysis) (int64, error) {
	err := dao.db.WithContext(ctx).Create(&a).Error
	return a.ID, err
}

func (dao *GORMSingleAnalysisDAO) FindByTaskID(ctx context.Context, taskID string) (SingleAnalysis, error) {
	var res SingleAnalysis
	err := dao.db.WithContext(ctx).Where("task_id = ?", taskID).First(&res).Error
	return res, err
}

// SingleAnalysis 单字精批表：五维度深度分析的落库形态。
type SingleAnalysis struct {
	ID               int64  `gorm:"primaryKey;autoIncrement"`
	TaskID           string `gorm:"type:varchar(64);uniqueIndex:unq_task_id;not null"`
	UserID           int64  `gorm:"index:idx_user_id;comment:用户ID，0为匿名"`
	RecognizedChar   string `gorm:"type:varchar(8)"`
	StructureScore   int
	StructureDetail  string `gorm:"type:text"`
	StrokeScore      int
	StrokeDetail     string `gorm:"type:text"`
	BalanceScore     int
	BalanceDetail    string `gorm:"type:text"`
	SpacingScore     int
	SpacingDetail    string `gorm:"type:text"`
	OverallScore     int
	OverallComment   string `gorm:"type:text"`
	Suggestion       string `gorm:"type:text"`
	ProcessingTimeMs int64
	CreatedAt        string `gorm:"type:varchar(19)"`
}

func (SingleAnalysis) TableName() string {
	return "t_single_analysis"
}
