// internal/service/promotion/domain/discount.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType 决定优惠金额的计算方式
type DiscountType string

const (
	DiscountTypePercentage   DiscountType = "PERCENTAGE"    // 按比例折扣，可设上限
	DiscountTypeFixedAmount  DiscountType = "FIXED_AMOUNT"  // 立减，不超过订单金额
	DiscountTypeFreeShipping DiscountType = "FREE_SHIPPING" // 免运费，不减商品金额
)

func (t DiscountType) Valid() bool {
	switch t {
	case DiscountTypePercentage, DiscountTypeFixedAmount, DiscountTypeFreeShipping:
		return true
	}
	return false
}

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// ParseStatus 大小写不敏感
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusInactive:
		return st, nil
	}
	return "", fmt.Errorf("%w: status must be ACTIVE or INACTIVE", ErrInvalidDiscount)
}

var hundred = decimal.NewFromInt(100)

// Discount 是一个折扣码。删除只会停用，保留与历史订单的关联
type Discount struct {
	ID                int64
	Code              string // 统一存为大写
	Name              string
	Description       string
	Type              DiscountType
	Value             decimal.Decimal
	MinOrderValue     decimal.NullDecimal
	MaxDiscountAmount decimal.NullDecimal // 只对 PERCENTAGE 生效
	UsageLimit        *int                // nil 表示不限次数
	UsedCount         int
	StartDate         *time.Time
	EndDate           *time.Time
	Status            Status
	CreatedBy         int64

	// Rule 是可选的 CEL 表达式，决定订单是否满足使用条件
	Rule string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeCode 折扣码大小写不敏感
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckUsable 判断折扣码在 now 时刻是否可用（启用、在有效期内、未用完）
func (d *Discount) CheckUsable(now time.Time) error {
	if d.Status != StatusActive {
		return ErrDiscountInactive
	}
	if d.StartDate != nil && now.Before(*d.StartDate) {
		return ErrDiscountExpired
	}
	if d.EndDate != nil && now.After(*d.EndDate) {
		return ErrDiscountExpired
	}
	if d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit {
		return ErrDiscountExhausted
	}
	return nil
}

// Calculate 计算订单小计可以减免的金额，不修改任何状态
func (d *Discount) Calculate(subtotal decimal.Decimal) (decimal.Decimal, error) {
	if d.MinOrderValue.Valid && subtotal.LessThan(d.MinOrderValue.Decimal) {
		return decimal.Zero, fmt.Errorf("%w: requires at least %s", ErrOrderBelowMinimum, d.MinOrderValue.Decimal.String())
	}

	switch d.Type {
	case DiscountTypePercentage:
		amount := subtotal.Mul(d.Value).Div(hundred).Round(2)
		if d.MaxDiscountAmount.Valid && amount.GreaterThan(d.MaxDiscountAmount.Decimal) {
			amount = d.MaxDiscountAmount.Decimal
		}
		return amount, nil
	case DiscountTypeFixedAmount:
		return decimal.Min(d.Value, subtotal), nil
	case DiscountTypeFreeShipping:
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, d.Type)
	}
}

// Quote 在校验可用性之后计算减免金额
func (d *Discount) Quote(now time.Time, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if err := d.CheckUsable(now); err != nil {
		return decimal.Zero, err
	}
	return d.Calculate(subtotal)
}

// UsagePercentage 返回已用次数占上限的百分比（两位小数），不限次数时 ok 为 false
func (d *Discount) UsagePercentage() (decimal.Decimal, bool) {
	if d.UsageLimit == nil {
		return decimal.Zero, false
	}
	if *d.UsageLimit == 0 {
		return hundred, true
	}
	used := decimal.NewFromInt(int64(d.UsedCount))
	return used.Mul(hundred).Div(decimal.NewFromInt(int64(*d.UsageLimit))).Round(2), true
}

func (d *Discount) FreeShipping() bool {
	return d.Type == DiscountTypeFreeShipping
}

// Validate 校验管理端提交的折扣定义
func (d *Discount) Validate() error {
	if d.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidDiscount)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDiscount)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: type must be PERCENTAGE, FIXED_AMOUNT or FREE_SHIPPING", ErrInvalidDiscount)
	}
	if !d.Value.IsPositive() {
		return fmt.Errorf("%w: value must be greater than 0", ErrInvalidDiscount)
	}
	if d.Type == DiscountTypePercentage && d.Value.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalidDiscount)
	}
	if d.MinOrderValue.Valid && d.MinOrderValue.Decimal.IsNegative() {
		return fmt.Errorf("%w: min order value cannot be negative", ErrInvalidDiscount)
	}
	if d.MaxDiscountAmount.Valid && !d.MaxDiscountAmount.Decimal.IsPositive() {
		return fmt.Errorf("%w: max discount amount must be greater than 0", ErrInvalidDiscount)
	}
	if d.UsageLimit != nil && *d.UsageLimit < 0 {
		return fmt.Errorf("%w: usage limit cannot be negative", ErrInvalidDiscount)
	}
	if d.UsageLimit != nil && *d.UsageLimit < d.UsedCount {
		return fmt.Errorf("%w: usage limit %d is below the %d uses already redeemed", ErrInvalidDiscount, *d.UsageLimit, d.UsedCount)
	}
	if d.StartDate != nil && d.EndDate != nil && d.StartDate.After(*d.EndDate) {
		return fmt.Errorf("%w: start date must be before end date", ErrInvalidDiscount)
	}
	return nil
}
