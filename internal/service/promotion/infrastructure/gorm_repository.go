package infrastructure

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"marketplace/internal/pkg/database"
	"marketplace/internal/service/promotion/domain"
)

// updatableColumns 是管理端可以修改的列，used_count 只能通过 Increment/DecrementUsage 变更
var updatableColumns = []string{
	"code", "name", "description", "discount_type", "discount_value",
	"min_order_value", "max_discount_amount", "usage_limit",
	"start_date", "end_date", "rule", "updated_at",
}

// GormDiscountRepository 是 DiscountRepository 的 GORM 实现
type GormDiscountRepository struct {
	db *gorm.DB
}

// NewGormDiscountRepository 创建一个新的 GORM 仓储实例
func NewGormDiscountRepository(db *gorm.DB) *GormDiscountRepository {
	return &GormDiscountRepository{db: db}
}

func (r *GormDiscountRepository) Create(ctx context.Context, d *domain.Discount) error {
	m := FromDomainDiscount(d)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return errors.Wrapf(domain.ErrDuplicateCode, "code %s", d.Code)
		}
		return errors.Wrap(err, "create discount")
	}
	d.ID, d.CreatedAt, d.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *GormDiscountRepository) Update(ctx context.Context, d *domain.Discount) error {
	d.UpdatedAt = time.Now().UTC()
	m := FromDomainDiscount(d)
	q := r.db.WithContext(ctx).Model(&DiscountModel{ID: d.ID})
	// 新上限不能低于并发核销后的已用次数
	if d.UsageLimit != nil {
		q = q.Where("used_count <= ?", *d.UsageLimit)
	}
	res := q.Select(updatableColumns).Updates(m)
	if res.Error != nil {
		if database.IsDuplicateKey(res.Error) {
			return errors.Wrapf(domain.ErrDuplicateCode, "code %s", d.Code)
		}
		return errors.Wrapf(res.Error, "update discount %d", d.ID)
	}
	if res.RowsAffected == 0 {
		current, err := r.FindByID(ctx, d.ID)
		if err != nil {
			return err
		}
		if d.UsageLimit == nil {
			return errors.Wrapf(domain.ErrDiscountNotFound, "id %d", d.ID)
		}
		return errors.Wrapf(domain.ErrInvalidDiscount, "usage limit %d is below the %d uses already redeemed", *d.UsageLimit, current.UsedCount)
	}
	return nil
}

func (r *GormDiscountRepository) FindByID(ctx context.Context, id int64) (*domain.Discount, error) {
	var m DiscountModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrDiscountNotFound, "id %d", id)
		}
		return nil, errors.Wrapf(err, "find discount %d", id)
	}
	return ToDomainDiscount(&m), nil
}

func (r *GormDiscountRepository) FindByCode(ctx context.Context, code string) (*domain.Discount, error) {
	var m DiscountModel
	code = domain.NormalizeCode(code)
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrDiscountNotFound, "code %s", code)
		}
		return nil, errors.Wrapf(err, "find discount %s", code)
	}
	return ToDomainDiscount(&m), nil
}

func (r *GormDiscountRepository) List(ctx context.Context, f domain.DiscountFilter) ([]*domain.Discount, error) {
	q := r.db.WithContext(ctx).Model(&DiscountModel{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CreatedBy != 0 {
		q = q.Where("created_by = ?", f.CreatedBy)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		q = q.Where("(LOWER(code) LIKE ? OR LOWER(name) LIKE ?)", like, like)
	}

	var models []DiscountModel
	if err := q.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list discounts")
	}
	out := make([]*domain.Discount, len(models))
	for i := range models {
		out[i] = ToDomainDiscount(&models[i])
	}
	return out, nil
}

func (r *GormDiscountRepository) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	res := r.db.WithContext(ctx).Model(&DiscountModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(status), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "set status of discount %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(domain.ErrDiscountNotFound, "id %d", id)
	}
	return nil
}

// IncrementUsage 把可用性判断和计数放进同一条 UPDATE，避免超发
func (r *GormDiscountRepository) IncrementUsage(ctx context.Context, code string, now time.Time) error {
	code = domain.NormalizeCode(code)
	now = now.UTC()
	res := r.db.WithContext(ctx).Model(&DiscountModel{}).
		Where("code = ? AND status = ?", code, string(domain.StatusActive)).
		Where("(usage_limit IS NULL OR used_count < usage_limit)").
		Where("(start_date IS NULL OR start_date <= ?)", now).
		Where("(end_date IS NULL OR end_date >= ?)", now).
		Updates(map[string]interface{}{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "redeem discount %s", code)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// 没有命中：重新读取，返回具体原因
	d, err := r.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	cause := d.CheckUsable(now)
	if cause == nil {
		cause = domain.ErrDiscountExhausted
	}
	return errors.Wrapf(cause, "code %s", code)
}

func (r *GormDiscountRepository) DecrementUsage(ctx context.Context, code string) error {
	code = domain.NormalizeCode(code)
	res := r.db.WithContext(ctx).Model(&DiscountModel{}).
		Where("code = ? AND used_count > 0", code).
		Updates(map[string]interface{}{
			"used_count": gorm.Expr("used_count - 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "release discount %s", code)
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByCode(ctx, code); err != nil {
			return err
		}
	}
	return nil
}
