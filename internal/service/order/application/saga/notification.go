package saga

import (
	"go.opentelemetry.io/otel/attribute"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/service/order/domain"
)

// NotificationHandler 是 Saga 流程的最后一步，发布 OrderPlaced 事件。
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Notification")
	defer span.End()

	logger.Ctx(ctx).Info().Msg("【Saga】=> 步骤 Final: 发布下单成功事件...")

	o := orderCtx.Order
	span.SetAttributes(attribute.String("event.type", domain.EventOrderPlaced))
	if orderCtx.Publisher != nil {
		err := orderCtx.Publisher.Publish(ctx, domain.OrderPlaced{
			OrderID:        o.ID,
			CustomerID:     o.CustomerID,
			TotalAmount:    o.TotalAmount,
			DiscountCode:   o.DiscountCode,
			DiscountAmount: o.DiscountAmount,
			PayableAmount:  o.PayableAmount,
			ItemCount:      len(o.Items),
			PlacedAt:       o.CreatedAt,
		})
		// 发布失败不影响已提交的订单
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order", o.ID).Msg("WARN: failed to publish order placed event")
			span.RecordError(err)
		}
	}

	span.AddEvent("Saga process finalized and event published (or attempted).")

	return h.executeNext(orderCtx)
}
