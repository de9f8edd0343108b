// internal/service/order/domain/event.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 事件类型，写入 Kafka 消息头 event-type
const (
	EventOrderPlaced         = "OrderPlaced"
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventOrderCreationFailed = "OrderCreationFailed"
)

// Event 是订单服务对外发布的领域事件
type Event interface {
	EventType() string
	// Key 作为 Kafka 分区键，也用于 websocket 推送时定位客户
	Key() string
	CustomerRef() int64
}

// CheckoutRequested 是异步下单的命令载体，由网关写入 order-checkout-requests
type CheckoutRequested struct {
	EventID         string        `json:"eventId"`
	CustomerID      int64         `json:"customerId"`
	Items           []LineRequest `json:"items"`
	DiscountCode    string        `json:"discountCode,omitempty"`
	Note            string        `json:"note,omitempty"`
	PaymentMethod   string        `json:"paymentMethod,omitempty"`
	ShippingAddress string        `json:"shippingAddress,omitempty"`
	RequestedAt     time.Time     `json:"requestedAt"`
}

// LineRequest 是一行购买请求
type LineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// OrderPlaced 是订单成功提交后发布的事件
type OrderPlaced struct {
	OrderID        string          `json:"orderId"`
	CustomerID     int64           `json:"customerId"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountCode   string          `json:"discountCode,omitempty"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	PayableAmount  decimal.Decimal `json:"payableAmount"`
	ItemCount      int             `json:"itemCount"`
	PlacedAt       time.Time       `json:"placedAt"`
}

func (e OrderPlaced) EventType() string  { return EventOrderPlaced }
func (e OrderPlaced) Key() string        { return e.OrderID }
func (e OrderPlaced) CustomerRef() int64 { return e.CustomerID }

// OrderStatusChanged 在每次状态迁移后发布
type OrderStatusChanged struct {
	OrderID    string    `json:"orderId"`
	CustomerID int64     `json:"customerId"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	Actor      int64     `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

func (e OrderStatusChanged) EventType() string  { return EventOrderStatusChanged }
func (e OrderStatusChanged) Key() string        { return e.OrderID }
func (e OrderStatusChanged) CustomerRef() int64 { return e.CustomerID }

// OrderCreationFailed 是异步下单失败时发布的事件
type OrderCreationFailed struct {
	EventID    string    `json:"eventId"`
	CustomerID int64     `json:"customerId"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

func (e OrderCreationFailed) EventType() string  { return EventOrderCreationFailed }
func (e OrderCreationFailed) Key() string        { return e.EventID }
func (e OrderCreationFailed) CustomerRef() int64 { return e.CustomerID }
