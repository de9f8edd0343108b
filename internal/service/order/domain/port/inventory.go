package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// Reservation 是预占成功时商品的快照
type Reservation struct {
	ProductID int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	SellerID  int64
}

// InventoryLedger 是库存账本的出站端口。
type InventoryLedger interface {
	// Reserve 原子地扣减库存并返回当时的商品快照
	Reserve(ctx context.Context, productID int64, qty int) (Reservation, error)
	// Release 是 Reserve 的补偿操作，每次预占只调用一次
	Release(ctx context.Context, productID int64, qty int) error
}
