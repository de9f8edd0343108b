// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Create 在一个事务内写入订单、订单行与初始历史
	Create(ctx context.Context, order *Order) error

	FindByID(ctx context.Context, id string) (*Order, error)

	// ListByCustomer / ListByStatus / List 均按创建时间倒序
	ListByCustomer(ctx context.Context, customerID int64) ([]*Order, error)
	ListByStatus(ctx context.Context, status Status) ([]*Order, error)
	List(ctx context.Context) ([]*Order, error)

	// UpdateStatus 以 change.From 为条件更新状态并写入历史；
	// 当前状态已不是 change.From 时返回 ErrStatusConflict
	UpdateStatus(ctx context.Context, id string, change StatusChange) error

	// UpdateShippingAddress 只在订单仍处于可编辑状态时生效，否则返回 ErrOrderNotEditable
	UpdateShippingAddress(ctx context.Context, id, address string) error
}
