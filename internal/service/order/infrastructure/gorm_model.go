package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"

	"marketplace/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID              string          `gorm:"primaryKey;size:36"`
	CustomerID      int64           `gorm:"not null;index"`
	CustomerName    string          `gorm:"size:255"`
	CustomerEmail   string          `gorm:"size:255"`
	CustomerPhone   string          `gorm:"size:32"`
	ShippingAddress string          `gorm:"type:text"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	DiscountCode    string          `gorm:"size:64"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	PayableAmount   decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	FreeShipping    bool
	Status          string    `gorm:"size:16;not null;index"`
	Note            string    `gorm:"type:text"`
	PaymentMethod   string    `gorm:"size:32;not null"`
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time

	Items   []OrderItemModel     `gorm:"foreignKey:OrderID"`
	History []StatusHistoryModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应 order_items 表，商品名称和单价是下单时的快照
type OrderItemModel struct {
	ID           int64           `gorm:"primaryKey"`
	OrderID      string          `gorm:"size:36;not null;index"`
	ProductID    int64           `gorm:"not null;index"`
	ProductName  string          `gorm:"size:255;not null"`
	ProductPrice decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Quantity     int             `gorm:"not null"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	SellerID     int64           `gorm:"index"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

// StatusHistoryModel 对应 order_status_history 表
type StatusHistoryModel struct {
	ID         int64  `gorm:"primaryKey"`
	OrderID    string `gorm:"size:36;not null;index"`
	FromStatus string `gorm:"size:16"`
	ToStatus   string `gorm:"size:16;not null"`
	Actor      int64
	Reason     string    `gorm:"size:255"`
	ChangedAt  time.Time `gorm:"not null"`
}

func (StatusHistoryModel) TableName() string {
	return "order_status_history"
}

// Models 返回需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{&OrderModel{}, &OrderItemModel{}, &StatusHistoryModel{}}
}

func fromDomainOrder(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		CustomerPhone:   o.CustomerPhone,
		ShippingAddress: o.ShippingAddress,
		TotalAmount:     o.TotalAmount,
		DiscountCode:    o.DiscountCode,
		DiscountAmount:  o.DiscountAmount,
		PayableAmount:   o.PayableAmount,
		FreeShipping:    o.FreeShipping,
		Status:          string(o.Status),
		Note:            o.Note,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, it := range o.Items {
		m.Items = append(m.Items, OrderItemModel{
			OrderID:      o.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			ProductPrice: it.UnitPrice,
			Quantity:     it.Quantity,
			Subtotal:     it.Subtotal,
			SellerID:     it.SellerID,
		})
	}
	for _, h := range o.History {
		m.History = append(m.History, historyModel(o.ID, h))
	}
	return m
}

func historyModel(orderID string, h domain.StatusChange) StatusHistoryModel {
	return StatusHistoryModel{
		OrderID:    orderID,
		FromStatus: string(h.From),
		ToStatus:   string(h.To),
		Actor:      h.Actor,
		Reason:     h.Reason,
		ChangedAt:  h.At,
	}
}

func toDomainOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:              m.ID,
		CustomerID:      m.CustomerID,
		CustomerName:    m.CustomerName,
		CustomerEmail:   m.CustomerEmail,
		CustomerPhone:   m.CustomerPhone,
		ShippingAddress: m.ShippingAddress,
		TotalAmount:     m.TotalAmount,
		DiscountCode:    m.DiscountCode,
		DiscountAmount:  m.DiscountAmount,
		PayableAmount:   m.PayableAmount,
		FreeShipping:    m.FreeShipping,
		Status:          domain.Status(m.Status),
		Note:            m.Note,
		PaymentMethod:   m.PaymentMethod,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Items:           make([]domain.OrderItem, len(m.Items)),
	}
	for i, it := range m.Items {
		o.Items[i] = domain.OrderItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.ProductPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
			SellerID:    it.SellerID,
		}
	}
	for _, h := range m.History {
		o.History = append(o.History, domain.StatusChange{
			From:   domain.Status(h.FromStatus),
			To:     domain.Status(h.ToStatus),
			Actor:  h.Actor,
			Reason: h.Reason,
			At:     h.ChangedAt,
		})
	}
	return o
}
