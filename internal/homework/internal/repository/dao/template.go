package dao

import (
	"context"

	"github.com/ego-component/egorm"
)

type TemplateDAO interface {
	FindAll(ctx context.Context) ([]CopybookTemplate, error)
	FindByID(ctx context.Context, id int64) (CopybookTemplate, error)
}

type GORMTemplateDAO struct {
	db *egorm.Component
}

func NewGORMTemplateDAO(db *egorm.Component) TemplateDAO {
	return &GORMTemplateDAO{db: db}
}

func (dao *GORMTemplateDAO) FindAll(ctx context.Context) ([]CopybookTemplate, error) {
	var res []CopybookTemplate
	err := dao.db.WithContext(ctx).Order("id ASC").Find(&res).Error
	return res, err
}

func (dao *GORMTemplateDAO) FindByID(ctx context.Context, id int64) (CopybookTemplate, error) {
	var res CopybookTemplate
	err := dao.db.WithContext(ctx).Where("id = ?", id).First(&res).Error
	return res, err
}

// CopybookTemplate 字帖模板表：行列数加页眉占比，驱动确定性网格裁切。
type CopybookTemplate struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Name     string `gorm:"type:varchar(64);uniqueIndex:unq_name;not null"`
	GridType string `gorm:"type:varchar(16);comment:TIAN/MI/HUI/PLAIN"`
	GridRows int    `gorm:"not null"`
	GridCols int    `gorm:"not null"`
	// 页眉占整图高度的比例，[0, 0.3]
	HeaderRatio float64
	Description string `gorm:"type:varchar(256)"`
}

func (CopybookTemplate) TableName() string {
	return "t_copybook_template"
}
