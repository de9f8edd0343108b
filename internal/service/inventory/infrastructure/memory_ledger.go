package infrastructure

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"marketplace/internal/pkg/lock"
	"marketplace/internal/service/inventory/domain"
)

// MemoryLedger 是进程内的库存台账，按商品 ID 加锁，用于本地运行和测试
type MemoryLedger struct {
	mu       sync.RWMutex
	products map[int64]*domain.Product
	locks    *lock.KeyedMutex
}

func NewMemoryLedger(products ...domain.Product) *MemoryLedger {
	l := &MemoryLedger{
		products: make(map[int64]*domain.Product, len(products)),
		locks:    lock.NewKeyedMutex(),
	}
	for _, p := range products {
		l.Put(p)
	}
	return l
}

// Put 新增或覆盖一个商品
func (l *MemoryLedger) Put(p domain.Product) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := p
	l.products[p.ID] = &cp
}

// GetProduct 返回商品的副本
func (l *MemoryLedger) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.products[productID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrProductNotFound, "product %d", productID)
	}
	cp := *p
	return &cp, nil
}

func (l *MemoryLedger) Reserve(ctx context.Context, productID int64, qty int) (domain.Reservation, error) {
	unlock, err := l.locks.Lock(ctx, productKey(productID))
	if err != nil {
		return domain.Reservation{}, err
	}
	defer unlock()

	p, err := l.lookup(productID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := p.CheckReservable(qty); err != nil {
		return domain.Reservation{}, errors.Wrapf(err, "product %d", productID)
	}
	p.Stock -= qty
	return reservationOf(p, qty), nil
}

func (l *MemoryLedger) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return errors.Wrapf(domain.ErrInvalidQuantity, "product %d", productID)
	}
	unlock, err := l.locks.Lock(ctx, productKey(productID))
	if err != nil {
		return err
	}
	defer unlock()

	p, err := l.lookup(productID)
	if err != nil {
		return err
	}
	p.Stock += qty
	return nil
}

// lookup 返回内部指针，调用方必须持有该商品的锁
func (l *MemoryLedger) lookup(productID int64) (*domain.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.products[productID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrProductNotFound, "product %d", productID)
	}
	return p, nil
}

func productKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}
