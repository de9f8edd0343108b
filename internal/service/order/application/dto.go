// internal/service/order/application/dto.go
package application

import (
	"time"

	"github.com/shopspring/decimal"

	"marketplace/internal/service/order/domain"
)

// LineItem 是下单请求中的一行
type LineItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	CustomerID      int64      `json:"-"`
	Items           []LineItem `json:"items"`
	DiscountCode    string     `json:"discountCode,omitempty"`
	Note            string     `json:"note,omitempty"`
	PaymentMethod   string     `json:"paymentMethod,omitempty"`
	ShippingAddress string     `json:"shippingAddress,omitempty"`
}

// ToCheckoutRequested 从应用层请求DTO转换为领域命令
func (req *CreateOrderRequest) ToCheckoutRequested(eventID string, now time.Time) *domain.CheckoutRequested {
	lines := make([]domain.LineRequest, len(req.Items))
	for i, it := range req.Items {
		lines[i] = domain.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return &domain.CheckoutRequested{
		EventID:         eventID,
		CustomerID:      req.CustomerID,
		Items:           lines,
		DiscountCode:    req.DiscountCode,
		Note:            req.Note,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		RequestedAt:     now,
	}
}

// CheckoutAccepted 是异步下单的响应
type CheckoutAccepted struct {
	OrderID string        `json:"orderId"`
	Status  domain.Status `json:"status"`
	Message string        `json:"message"`
}

type OrderItemDTO struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"productPrice"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	SellerID    int64           `json:"sellerId"`
}

type StatusChangeDTO struct {
	From   domain.Status `json:"from,omitempty"`
	To     domain.Status `json:"to"`
	Actor  int64         `json:"actor"`
	Reason string        `json:"reason,omitempty"`
	At     time.Time     `json:"at"`
}

// OrderDTO 是订单对外的表示
type OrderDTO struct {
	ID              string            `json:"id"`
	CustomerID      int64             `json:"customerId"`
	CustomerName    string            `json:"customerName"`
	CustomerEmail   string            `json:"customerEmail"`
	CustomerPhone   string            `json:"customerPhone"`
	ShippingAddress string            `json:"shippingAddress"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	DiscountCode    string            `json:"discountCode,omitempty"`
	DiscountAmount  decimal.Decimal   `json:"discountAmount"`
	PayableAmount   decimal.Decimal   `json:"payableAmount"`
	FreeShipping    bool              `json:"freeShipping"`
	Status          domain.Status     `json:"status"`
	Note            string            `json:"note,omitempty"`
	PaymentMethod   string            `json:"paymentMethod"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	Items           []OrderItemDTO    `json:"orderItems"`
	History         []StatusChangeDTO `json:"history,omitempty"`
}

func ToOrderDTO(o *domain.Order) *OrderDTO {
	dto := &OrderDTO{
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
		Status:          o.Status,
		Note:            o.Note,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]OrderItemDTO, len(o.Items)),
	}
	for i, it := range o.Items {
		dto.Items[i] = OrderItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
			SellerID:    it.SellerID,
		}
	}
	for _, h := range o.History {
		dto.History = append(dto.History, StatusChangeDTO{From: h.From, To: h.To, Actor: h.Actor, Reason: h.Reason, At: h.At})
	}
	return dto
}

func toOrderDTOs(orders []*domain.Order) []*OrderDTO {
	out := make([]*OrderDTO, len(orders))
	for i, o := range orders {
		out[i] = ToOrderDTO(o)
	}
	return out
}
