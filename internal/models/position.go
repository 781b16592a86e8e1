package models

import (
	"strings"
	"time"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Position 投放位
type Position struct {
	ID         uint      `gorm:"primarykey" json:"id"`                               // 主键
	Name       string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"name"` // 名称
	Slug       string    `gorm:"type:varchar(160);uniqueIndex;not null" json:"slug"` // URL 标识
	MaxBanners int       `gorm:"not null;default:1" json:"max_banners"`              // 同时段容量（创建后不可修改）
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt  time.Time `json:"updated_at"`                                         // 更新时间
}

// TableName 指定表名
func (Position) TableName() string {
	return "positions"
}

// BeforeSave 缺省时根据名称生成 slug
func (p *Position) BeforeSave(tx *gorm.DB) error {
	if strings.TrimSpace(p.Slug) == "" {
		p.Slug = slug.Make(p.Name)
	}
	return nil
}

// AllowsDisplayOrder 多容量投放位需要显示顺序
func (p *Position) AllowsDisplayOrder() bool {
	return p != nil && p.MaxBanners > 1
}

// DefaultPositions 初始投放位
func DefaultPositions() []Position {
	return []Position{
		{Name: "flotante principal", MaxBanners: 1},
		{Name: "encabezado", MaxBanners: 1},
		{Name: "pie", MaxBanners: 2},
		{Name: "lateral derecho", MaxBanners: 3},
	}
}
