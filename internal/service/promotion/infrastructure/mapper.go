package infrastructure

import (
	"database/sql"
	"time"

	"marketplace/internal/service/promotion/domain"
)

// ToDomainDiscount 将数据库模型转换为领域模型
func ToDomainDiscount(m *DiscountModel) *domain.Discount {
	if m == nil {
		return nil
	}
	d := &domain.Discount{
		ID:                m.ID,
		Code:              m.Code,
		Name:              m.Name,
		Description:       m.Description,
		Type:              domain.DiscountType(m.DiscountType),
		Value:             m.DiscountValue,
		MinOrderValue:     m.MinOrderValue,
		MaxDiscountAmount: m.MaxDiscountAmount,
		UsedCount:         m.UsedCount,
		Status:            domain.Status(m.Status),
		CreatedBy:         m.CreatedBy,
		Rule:              m.Rule,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.UsageLimit.Valid {
		limit := int(m.UsageLimit.Int64)
		d.UsageLimit = &limit
	}
	if m.StartDate.Valid {
		t := m.StartDate.Time.UTC()
		d.StartDate = &t
	}
	if m.EndDate.Valid {
		t := m.EndDate.Time.UTC()
		d.EndDate = &t
	}
	return d
}

// FromDomainDiscount 将领域模型转换为数据库模型
func FromDomainDiscount(d *domain.Discount) *DiscountModel {
	if d == nil {
		return nil
	}
	m := &DiscountModel{
		ID:                d.ID,
		Code:              d.Code,
		Name:              d.Name,
		Description:       d.Description,
		DiscountType:      string(d.Type),
		DiscountValue:     d.Value,
		MinOrderValue:     d.MinOrderValue,
		MaxDiscountAmount: d.MaxDiscountAmount,
		UsedCount:         d.UsedCount,
		StartDate:         nullTime(d.StartDate),
		EndDate:           nullTime(d.EndDate),
		Status:            string(d.Status),
		CreatedBy:         d.CreatedBy,
		Rule:              d.Rule,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	if d.UsageLimit != nil {
		m.UsageLimit = sql.NullInt64{Int64: int64(*d.UsageLimit), Valid: true}
	}
	return m
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
