package port

import (
	"context"

	"marketplace/internal/service/order/domain"
)

// EventPublisher 是领域事件的出站端口。
// 发布失败不影响已经提交的订单。
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
