package adapter

import (
	"context"

	inventory "marketplace/internal/service/inventory/domain"
	"marketplace/internal/service/order/domain/port"
)

// InventoryLedgerAdapter 实现了 port.InventoryLedger 接口，进程内调用库存账本。
type InventoryLedgerAdapter struct {
	ledger inventory.Ledger
}

func NewInventoryLedgerAdapter(ledger inventory.Ledger) *InventoryLedgerAdapter {
	return &InventoryLedgerAdapter{ledger: ledger}
}

func (a *InventoryLedgerAdapter) Reserve(ctx context.Context, productID int64, qty int) (port.Reservation, error) {
	r, err := a.ledger.Reserve(ctx, productID, qty)
	if err != nil {
		return port.Reservation{}, err
	}
	return port.Reservation{
		ProductID: r.ProductID,
		Name:      r.Name,
		UnitPrice: r.UnitPrice,
		Quantity:  r.Quantity,
		SellerID:  r.SellerID,
	}, nil
}

func (a *InventoryLedgerAdapter) Release(ctx context.Context, productID int64, qty int) error {
	return a.ledger.Release(ctx, productID, qty)
}
