package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountFilter 是列表查询条件，零值字段不参与过滤
type DiscountFilter struct {
	Status    Status
	CreatedBy int64
	Keyword   string // 匹配 code 或 name，大小写不敏感
}

// DiscountRepository 定义了折扣码的持久化接口
type DiscountRepository interface {
	Create(ctx context.Context, d *Discount) error // 冲突时返回 ErrDuplicateCode
	Update(ctx context.Context, d *Discount) error
	FindByID(ctx context.Context, id int64) (*Discount, error)
	FindByCode(ctx context.Context, code string) (*Discount, error)
	// List 按创建时间倒序返回
	List(ctx context.Context, filter DiscountFilter) ([]*Discount, error)
	SetStatus(ctx context.Context, id int64, status Status) error

	// IncrementUsage 仅当折扣码在 now 时刻仍可用时把 used_count 加一，
	// 否则返回具体的不可用原因
	IncrementUsage(ctx context.Context, code string, now time.Time) error
	// DecrementUsage 把 used_count 减一，不会低于 0
	DecrementUsage(ctx context.Context, code string) error
}

// Fact 是规则引擎评估时可见的订单事实
type Fact struct {
	Subtotal   decimal.Decimal
	ItemCount  int
	CustomerID int64
	ProductIDs []int64
}

// RuleEngine 评估折扣的使用条件
type RuleEngine interface {
	Validate(rule string) error
	Evaluate(rule string, fact Fact) (bool, error)
}

// CreatorDirectory 按用户 id 查询用户名，用于展示折扣码的创建人
type CreatorDirectory interface {
	Usernames(ctx context.Context, ids []int64) (map[int64]string, error)
}
