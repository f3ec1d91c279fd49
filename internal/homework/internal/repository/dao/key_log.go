package dao

import (
	"context"

	"github.com/ego-component/egorm"
)

type KeyLogDAO interface {
	Save(ctx context.Context, l KeyLog) error
	// CountRecentCalls since 为 "YYYY-MM-DD HH:MM:SS" 文本，和存储格式直接比较
	CountRecentCalls(ctx context.Context, uid int64, since string) (int64, error)
}

type GORMKeyLogDAO struct {
	db *egorm.Component
}

func NewGORMKeyLogDAO(db *egorm.Component) KeyLogDAO {
	return &GORMKeyLogDAO{db: db}
}

func (dao *GORMKeyLogDAO) Save(ctx context.Context, l KeyLog) error {
	return dao.db.WithContext(ctx).Create(&l).Error
}

func (dao *GORMKeyLogDAO) CountRecentCalls(ctx context.Context, uid int64, since string) (int64, error) {
	var count int64
	err := dao.db.WithContext(ctx).Model(&KeyLog{}).
		Where("user_id = ? AND created_at >= ?", uid, since).
		Count(&count).Error
	return count, err
}

// KeyLog 调用日志表：每次 AI 调用一条，防刷检查也从这里数。
type KeyLog struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	TaskID       string `gorm:"type:varchar(64);index:idx_task_id"`
	UserID       int64  `gorm:"index:idx_user_created;comment:用户ID，0为匿名"`
	Provider     string `gorm:"type:varchar(32);comment:AI 提供商"`
	Model        string `gorm:"type:varchar(64);comment:调用模式 whole-page/single-char"`
	CharCount    int    `gorm:"comment:本次处理字数"`
	LatencyMs    int64  `gorm:"comment:调用耗时毫秒"`
	Success      bool   `gorm:"comment:是否成功"`
	ErrorMessage string `gorm:"type:text"`
	CacheHits    int    `gorm:"comment:缓存命中数"`
	CreatedAt    string `gorm:"type:varchar(19);index:idx_user_created"`
}

func (KeyLog) TableName() string {
	return "t_key_log"
}
