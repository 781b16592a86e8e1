package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Banner 广告投放记录
type Banner struct {
	ID              string     `gorm:"type:varchar(36);primaryKey" json:"id"`                              // 主键（UUID）
	ImageURL        string     `gorm:"type:varchar(500);not null" json:"image_url"`                        // 图片地址
	ImagePublicID   string     `gorm:"type:varchar(255)" json:"-"`                                         // 图床资源 ID
	DestinationLink string     `gorm:"type:varchar(1000);not null" json:"destination_link"`                // 跳转链接
	StartDate       time.Time  `gorm:"not null;index" json:"start_date"`                                   // 开始时间
	EndDate         *time.Time `gorm:"index" json:"end_date"`                                              // 结束时间（为空表示不限期）
	RenewalStrategy string     `gorm:"type:varchar(20);not null;default:'manual'" json:"renewal_strategy"` // 续期策略
	RenewalPeriod   *int       `json:"renewal_period"`                                                     // 自动续期周期（天）
	DisplayOrder    *int       `gorm:"index" json:"display_order"`                                         // 显示顺序
	PositionID      uint       `gorm:"not null;index" json:"position_id"`                                  // 投放位
	Position        *Position  `gorm:"foreignKey:PositionID" json:"position,omitempty"`                    // 投放位详情
	UserID          uint       `gorm:"not null;index" json:"user_id"`                                      // 所属用户
	User            *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`                            // 所属用户详情
	Notified        bool       `gorm:"not null;default:false;index" json:"notified"`                       // 是否已发送到期提醒
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                            // 创建时间
	UpdatedAt       time.Time  `json:"updated_at"`                                                         // 更新时间
}

// TableName 指定表名
func (Banner) TableName() string {
	return "banners"
}

// BeforeCreate 生成 UUID 主键
func (b *Banner) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(b.ID) == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// IsOwnedBy 判断是否属于指定用户
func (b *Banner) IsOwnedBy(userID uint) bool {
	return b != nil && userID != 0 && b.UserID == userID
}
