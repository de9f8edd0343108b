package port

import (
	"context"

	"marketplace/internal/service/order/domain"
)

// CheckoutQueue 把下单命令投递给异步消费者
type CheckoutQueue interface {
	Enqueue(ctx context.Context, cmd *domain.CheckoutRequested) error
}
