// internal/service/promotion/application/dto.go
package application

import (
	"time"

	"github.com/shopspring/decimal"

	"marketplace/internal/service/promotion/domain"
)

// EvaluateRequest 描述一次折扣试算/核销所针对的订单
type EvaluateRequest struct {
	Code       string          `json:"code"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	CustomerID int64           `json:"customerId,omitempty"`
	ItemCount  int             `json:"itemCount,omitempty"`
	ProductIDs []int64         `json:"productIds,omitempty"`
}

func (r EvaluateRequest) fact() domain.Fact {
	return domain.Fact{
		Subtotal:   r.Subtotal,
		ItemCount:  r.ItemCount,
		CustomerID: r.CustomerID,
		ProductIDs: r.ProductIDs,
	}
}

// Quote 是试算结果
type Quote struct {
	Code           string              `json:"code"`
	Type           domain.DiscountType `json:"discountType"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
	FinalAmount    decimal.Decimal     `json:"finalAmount"`
	FreeShipping   bool                `json:"freeShipping"`
}

// DiscountRequest 是创建与修改折扣码的输入
type DiscountRequest struct {
	Code              string           `json:"code"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	DiscountType      string           `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MinOrderValue     *decimal.Decimal `json:"minOrderValue,omitempty"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
	UsageLimit        *int             `json:"usageLimit,omitempty"`
	StartDate         *time.Time       `json:"startDate,omitempty"`
	EndDate           *time.Time       `json:"endDate,omitempty"`
	Rule              string           `json:"rule,omitempty"`
}

func (r *DiscountRequest) applyTo(d *domain.Discount) {
	d.Code = domain.NormalizeCode(r.Code)
	d.Name = r.Name
	d.Description = r.Description
	d.Type = domain.DiscountType(r.DiscountType)
	d.Value = r.DiscountValue
	d.MinOrderValue = nullable(r.MinOrderValue)
	d.MaxDiscountAmount = nullable(r.MaxDiscountAmount)
	d.UsageLimit = r.UsageLimit
	d.StartDate = utc(r.StartDate)
	d.EndDate = utc(r.EndDate)
	d.Rule = r.Rule
}

func nullable(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*v)
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// DiscountDTO 是对外暴露的折扣码视图
type DiscountDTO struct {
	ID                int64            `json:"id"`
	Code              string           `json:"code"`
	Name              string           `json:"name"`
	Description       string           `json:"description,omitempty"`
	DiscountType      string           `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MinOrderValue     *decimal.Decimal `json:"minOrderValue,omitempty"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
	UsageLimit        *int             `json:"usageLimit,omitempty"`
	UsedCount         int              `json:"usedCount"`
	UsagePercentage   *decimal.Decimal `json:"usagePercentage,omitempty"` // 不限次数时为空
	StartDate         *time.Time       `json:"startDate,omitempty"`
	EndDate           *time.Time       `json:"endDate,omitempty"`
	Status            string           `json:"status"`
	CreatedBy         int64            `json:"createdBy"`
	CreatedByUsername string           `json:"createdByUsername,omitempty"`
	Rule              string           `json:"rule,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func ToDiscountDTO(d *domain.Discount) *DiscountDTO {
	dto := &DiscountDTO{
		ID:            d.ID,
		Code:          d.Code,
		Name:          d.Name,
		Description:   d.Description,
		DiscountType:  string(d.Type),
		DiscountValue: d.Value,
		UsageLimit:    d.UsageLimit,
		UsedCount:     d.UsedCount,
		StartDate:     d.StartDate,
		EndDate:       d.EndDate,
		Status:        string(d.Status),
		CreatedBy:     d.CreatedBy,
		Rule:          d.Rule,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if p, ok := d.UsagePercentage(); ok {
		dto.UsagePercentage = &p
	}
	if d.MinOrderValue.Valid {
		v := d.MinOrderValue.Decimal
		dto.MinOrderValue = &v
	}
	if d.MaxDiscountAmount.Valid {
		v := d.MaxDiscountAmount.Decimal
		dto.MaxDiscountAmount = &v
	}
	return dto
}

func toDTOs(ds []*domain.Discount) []*DiscountDTO {
	out := make([]*DiscountDTO, 0, len(ds))
	for _, d := range ds {
		out = append(out, ToDiscountDTO(d))
	}
	return out
}
