package dao

import "github.com/ego-component/egorm"

func InitTables(db *egorm.Component) error {
	err := db.AutoMigrate(
		&User{},
		&Homework{},
		&Analysis{},
		&KeyLog{},
		&CopybookTemplate{},
		&SingleAnalysis{},
	)
	if err != nil {
		return err
	}
	return seedTemplates(db)
}

// seedTemplates 内置几种常见字帖规格，已存在同名模板时跳过。
func seedTemplates(db *egorm.Component) error {
	presets := []CopybookTemplate{
		{Name: "田字格 8x6", GridType: "TIAN", GridRows: 8, GridCols: 6, HeaderRatio: 0.08, Description: "标准田字格练习纸，顶部姓名栏"},
		{Name: "田字格 10x8", GridType: "TIAN", GridRows: 10, GridCols: 8, HeaderRatio: 0.06, Description: "小格田字格练习纸"},
		{Name: "米字格 8x6", GridType: "MI", GridRows: 8, GridCols: 6, HeaderRatio: 0.08, Description: "米字格练习纸，适合初学"},
		{Name: "回宫格 6x4", GridType: "HUI", GridRows: 6, GridCols: 4, HeaderRatio: 0.1, Description: "回宫格大格练习纸"},
		{Name: "无格线 4x5", GridType: "PLAIN", GridRows: 4, GridCols: 5, HeaderRatio: 0, Description: "无格线自由书写"},
	}
	for i := range presets {
		err := db.Where("name = ?", presets[i].Name).
			FirstOrCreate(&presets[i]).Error
		if err != nil {
			return err
		}
	}
	return nil
}
