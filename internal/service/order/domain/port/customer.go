package port

import (
	"context"

	"marketplace/internal/service/order/domain"
)

// CustomerDirectory 读取客户资料，用于订单快照
type CustomerDirectory interface {
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
}
