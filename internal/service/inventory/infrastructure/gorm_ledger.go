package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"marketplace/internal/service/inventory/domain"
)

// GormLedger 是 domain.Ledger 的 MySQL 实现。
// 扣减是一条带条件的 UPDATE，由数据库行锁保证同一商品上的串行化。
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// Reserve 原子地扣减库存，并在同一事务中读取商品快照
func (l *GormLedger) Reserve(ctx context.Context, productID int64, qty int) (domain.Reservation, error) {
	if qty <= 0 {
		return domain.Reservation{}, errors.Wrapf(domain.ErrInvalidQuantity, "product %d", productID)
	}

	var reservation domain.Reservation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ProductModel{}).
			Where("id = ? AND status = ? AND stock >= ?", productID, domain.ProductActive, qty).
			Updates(map[string]interface{}{
				"stock":      gorm.Expr("stock - ?", qty),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "reserve product %d", productID)
		}

		var m ProductModel
		if err := tx.First(&m, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(domain.ErrProductNotFound, "product %d", productID)
			}
			return errors.Wrapf(err, "load product %d", productID)
		}
		p := toDomainProduct(&m)

		// 没有命中任何行：按当前状态归类失败原因
		if res.RowsAffected == 0 {
			cause := p.CheckReservable(qty)
			if cause == nil {
				cause = domain.ErrOutOfStock
			}
			return errors.Wrapf(cause, "product %d", productID)
		}

		reservation = reservationOf(p, qty)
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return reservation, nil
}

// Release 原子地归还库存，不检查商品是否仍在售
func (l *GormLedger) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return errors.Wrapf(domain.ErrInvalidQuantity, "product %d", productID)
	}
	res := l.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "release product %d", productID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrProductNotFound, "product %d", productID)
	}
	return nil
}

// GetProduct 读取商品当前状态
func (l *GormLedger) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	var m ProductModel
	if err := l.db.WithContext(ctx).First(&m, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrProductNotFound, "product %d", productID)
		}
		return nil, err
	}
	return toDomainProduct(&m), nil
}

// SaveProduct 写入商品目录（用于本地初始化和测试）
func (l *GormLedger) SaveProduct(ctx context.Context, p *domain.Product) error {
	m := fromDomainProduct(p)
	if err := l.db.WithContext(ctx).Save(m).Error; err != nil {
		return errors.Wrapf(err, "save product %d", p.ID)
	}
	p.ID = m.ID
	return nil
}

// ListProducts 按 id 顺序返回全部商品，用于预热缓存型台账
func (l *GormLedger) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var ms []ProductModel
	if err := l.db.WithContext(ctx).Order("id").Find(&ms).Error; err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	out := make([]domain.Product, len(ms))
	for i := range ms {
		out[i] = *toDomainProduct(&ms[i])
	}
	return out, nil
}
