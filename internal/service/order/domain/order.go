// internal/service/order/domain/order.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPaymentMethod 下单时未指定支付方式的默认值
const DefaultPaymentMethod = "CASH"

// Customer 是下单时从用户目录读取的客户资料
type Customer struct {
	ID      int64
	Name    string
	Email   string
	Phone   string
	Address string
}

// OrderItem 是订单行，商品名称与单价在下单时快照，之后不随商品修改而变化
type OrderItem struct {
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
	SellerID    int64
}

// StatusChange 是一次状态迁移的审计记录
type StatusChange struct {
	From   Status
	To     Status
	Actor  int64
	Reason string
	At     time.Time
}

// Order 是订单聚合的根实体
type Order struct {
	ID         string
	CustomerID int64

	// 客户资料快照
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ShippingAddress string

	Items []OrderItem

	TotalAmount    decimal.Decimal // 商品小计之和
	DiscountCode   string
	DiscountAmount decimal.Decimal
	PayableAmount  decimal.Decimal // max(0, TotalAmount - DiscountAmount)
	FreeShipping   bool

	Status        Status
	Note          string
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	History []StatusChange
}

// 工厂函数: NewOrder 创建一个 PENDING 状态的空订单
func NewOrder(id string, customer *Customer, note, paymentMethod string, now time.Time) *Order {
	if strings.TrimSpace(paymentMethod) == "" {
		paymentMethod = DefaultPaymentMethod
	}
	o := &Order{
		ID:              id,
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		CustomerEmail:   customer.Email,
		CustomerPhone:   customer.Phone,
		ShippingAddress: customer.Address,
		TotalAmount:     decimal.Zero,
		DiscountAmount:  decimal.Zero,
		PayableAmount:   decimal.Zero,
		Status:          StatusPending,
		Note:            note,
		PaymentMethod:   strings.ToUpper(strings.TrimSpace(paymentMethod)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.History = append(o.History, StatusChange{To: StatusPending, Actor: customer.ID, Reason: "order placed", At: now})
	return o
}

// AddItem 追加一行并累加订单总额
func (o *Order) AddItem(productID int64, name string, unitPrice decimal.Decimal, qty int, sellerID int64) {
	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	o.Items = append(o.Items, OrderItem{
		ProductID:   productID,
		ProductName: name,
		UnitPrice:   unitPrice,
		Quantity:    qty,
		Subtotal:    subtotal,
		SellerID:    sellerID,
	})
	o.TotalAmount = o.TotalAmount.Add(subtotal)
	o.PayableAmount = o.payable()
}

// ApplyDiscount 记录折扣码与优惠金额
func (o *Order) ApplyDiscount(code string, amount decimal.Decimal, freeShipping bool) {
	o.DiscountCode = code
	o.DiscountAmount = amount
	o.FreeShipping = freeShipping
	o.PayableAmount = o.payable()
}

func (o *Order) payable() decimal.Decimal {
	p := o.TotalAmount.Sub(o.DiscountAmount)
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

// IsOwnedBy 判断订单是否属于该客户
func (o *Order) IsOwnedBy(customerID int64) bool {
	return o.CustomerID == customerID
}

// TransitionTo 按邻接表迁移状态，并追加一条历史记录
func (o *Order) TransitionTo(next Status, actor int64, reason string, now time.Time) (StatusChange, error) {
	if !o.Status.CanTransitionTo(next) {
		return StatusChange{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, next)
	}
	change := StatusChange{From: o.Status, To: next, Actor: actor, Reason: reason, At: now}
	o.Status = next
	o.UpdatedAt = now
	o.History = append(o.History, change)
	return change, nil
}

// ChangeShippingAddress 只在 PENDING / CONFIRMED 时允许
func (o *Order) ChangeShippingAddress(address string, now time.Time) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("%w: shipping address is required", ErrInvalidInput)
	}
	if !o.Status.Editable() {
		return fmt.Errorf("%w: status is %s", ErrOrderNotEditable, o.Status)
	}
	o.ShippingAddress = address
	o.UpdatedAt = now
	return nil
}
