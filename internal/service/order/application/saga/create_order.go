package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/codes"

	"marketplace/internal/pkg/logger"
)

// CreateOrderHandler 负责持久化订单。
// 这是最后一个会失败的步骤，之后的步骤都是尽力而为。
type CreateOrderHandler struct {
	NextHandler
}

func (h *CreateOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.CreateOrder")
	defer span.End()

	logger.Ctx(ctx).Info().Str("order_id", orderCtx.Order.ID).Msg("【Saga】=> 步骤 5: 持久化订单...")

	if err := orderCtx.Repo.Create(ctx, orderCtx.Order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save order")
		return orderCtx.fail(StepPersist, fmt.Errorf("failed to save order: %w", err))
	}
	span.AddEvent("Pending order saved to DB.")
	orderCtx.MarkCommitted()

	return h.executeNext(orderCtx)
}
