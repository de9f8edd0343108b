package saga

import (
	"marketplace/internal/pkg/logger"
)

// CartHandler 清空购物车，失败只记录日志
type CartHandler struct {
	NextHandler
}

func (h *CartHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ClearCart")
	defer span.End()

	logger.Ctx(ctx).Info().Msg("【Saga】=> 步骤 6: 清空购物车...")

	if orderCtx.Cart != nil {
		if err := orderCtx.Cart.Clear(ctx, orderCtx.Order.CustomerID); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Warn().Err(err).Int64("customer_id", orderCtx.Order.CustomerID).
				Msg("failed to clear cart after order creation")
		}
	}

	return h.executeNext(orderCtx)
}
