package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketplace/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create 订单、订单行与历史在同一个事务中写入
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m := fromDomainOrder(order)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(m).Error; err != nil {
			return err
		}
		if len(m.Items) > 0 {
			if err := tx.Create(&m.Items).Error; err != nil {
				return err
			}
		}
		if len(m.History) > 0 {
			if err := tx.Create(&m.History).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrapf(err, "create order %s", order.ID)
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var m OrderModel
	err := r.preload(r.db.WithContext(ctx)).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", id)
		}
		return nil, errors.Wrapf(err, "find order %s", id)
	}
	return toDomainOrder(&m), nil
}

func (r *GormOrderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Order, error) {
	return r.list(r.db.WithContext(ctx).Where("customer_id = ?", customerID))
}

func (r *GormOrderRepository) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	return r.list(r.db.WithContext(ctx).Where("status = ?", string(status)))
}

func (r *GormOrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	return r.list(r.db.WithContext(ctx))
}

func (r *GormOrderRepository) list(q *gorm.DB) ([]*domain.Order, error) {
	var models []OrderModel
	if err := r.preload(q).Order("created_at DESC").Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	out := make([]*domain.Order, len(models))
	for i := range models {
		out[i] = toDomainOrder(&models[i])
	}
	return out, nil
}

func (r *GormOrderRepository) preload(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

// UpdateStatus 以 change.From 为条件更新，同一事务中写入历史
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id string, change domain.StatusChange) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND status = ?", id, string(change.From)).
			Updates(map[string]interface{}{"status": string(change.To), "updated_at": change.At})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "update status of order %s", id)
		}
		if res.RowsAffected == 0 {
			return r.missOrConflict(tx, id, domain.ErrStatusConflict)
		}
		h := historyModel(id, change)
		return errors.Wrapf(tx.Create(&h).Error, "record status history of order %s", id)
	})
}

// UpdateShippingAddress 只在 PENDING / CONFIRMED 时生效
func (r *GormOrderRepository) UpdateShippingAddress(ctx context.Context, id, address string) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&OrderModel{}).
		Where("id = ? AND status IN ?", id, []string{string(domain.StatusPending), string(domain.StatusConfirmed)}).
		Updates(map[string]interface{}{"shipping_address": address, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update address of order %s", id)
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(db, id, domain.ErrOrderNotEditable)
	}
	return nil
}

func (r *GormOrderRepository) missOrConflict(db *gorm.DB, id string, conflict error) error {
	var count int64
	if err := db.Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "check order %s", id)
	}
	if count == 0 {
		return errors.Wrapf(domain.ErrOrderNotFound, "order %s", id)
	}
	return errors.Wrapf(conflict, "order %s", id)
}
