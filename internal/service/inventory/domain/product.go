// internal/service/inventory/domain/product.go
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrOutOfStock         = errors.New("insufficient stock")
	ErrProductUnavailable = errors.New("product is not available for sale")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "ACTIVE"
	ProductInactive ProductStatus = "INACTIVE"
)

// Product 是目录中的商品，库存只能通过 Ledger 的 Reserve/Release 修改
type Product struct {
	ID         int64
	Name       string
	Price      decimal.Decimal
	Stock      int
	Status     ProductStatus
	SellerID   int64
	CategoryID int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *Product) IsActive() bool {
	return p.Status == ProductActive
}

// CheckReservable 判断商品当前能否预占 qty 件
func (p *Product) CheckReservable(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if !p.IsActive() {
		return ErrProductUnavailable
	}
	if p.Stock < qty {
		return ErrOutOfStock
	}
	return nil
}

// Reservation 记录一次预占，以及预占当时的商品快照
type Reservation struct {
	ProductID int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	SellerID  int64
}

// Ledger 是库存台账，同一商品上的预占与释放必须串行化
type Ledger interface {
	Reserve(ctx context.Context, productID int64, qty int) (Reservation, error)
	Release(ctx context.Context, productID int64, qty int) error
}
