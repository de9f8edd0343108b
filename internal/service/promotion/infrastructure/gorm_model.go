package infrastructure

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountModel 对应数据库中的 discounts 表
type DiscountModel struct {
	ID                int64               `gorm:"primaryKey"`
	Code              string              `gorm:"size:64;not null;uniqueIndex"`
	Name              string              `gorm:"size:255;not null"`
	Description       string              `gorm:"type:text"`
	DiscountType      string              `gorm:"size:32;not null"`
	DiscountValue     decimal.Decimal     `gorm:"type:decimal(15,2);not null"`
	MinOrderValue     decimal.NullDecimal `gorm:"type:decimal(15,2)"`
	MaxDiscountAmount decimal.NullDecimal `gorm:"type:decimal(15,2)"`
	UsageLimit        sql.NullInt64
	UsedCount         int `gorm:"not null;default:0"`
	StartDate         sql.NullTime
	EndDate           sql.NullTime
	Status            string `gorm:"size:16;not null;index"`
	CreatedBy         int64  `gorm:"index"`
	Rule              string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName 指定 GORM 应该使用的表名
func (DiscountModel) TableName() string {
	return "discounts"
}
