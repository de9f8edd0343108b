package saga

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/service/order/domain/port"
)

// DiscountHandler 先试算再核销折扣码，未提供折扣码时直接跳过
type DiscountHandler struct {
	NextHandler
}

func (h *DiscountHandler) Handle(orderCtx *OrderContext) error {
	code := orderCtx.Request.DiscountCode
	if code == "" {
		return h.executeNext(orderCtx)
	}

	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Discount")
	defer span.End()
	span.SetAttributes(attribute.String("discount.code", code))

	logger.Ctx(ctx).Info().Str("code", code).Msg("【Saga】=> 步骤 4: 试算并核销折扣码...")

	order := orderCtx.Order
	q := port.DiscountQuery{
		Code:       code,
		Subtotal:   order.TotalAmount,
		CustomerID: order.CustomerID,
		ItemCount:  len(order.Items),
	}
	for _, it := range order.Items {
		q.ProductIDs = append(q.ProductIDs, it.ProductID)
	}

	// 1. 试算，不占用次数
	quote, err := orderCtx.Discounts.Evaluate(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discount evaluation failed")
		return orderCtx.fail(StepDiscount, err)
	}

	// 2. 核销，期间折扣可能已过期或用尽
	if err := orderCtx.Discounts.Redeem(ctx, q); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discount redemption failed")
		return orderCtx.fail(StepDiscount, err)
	}
	orderCtx.AddCompensation(func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.ReleaseRedemption")
		defer compSpan.End()
		if err := orderCtx.Discounts.ReleaseRedemption(compCtx, quote.Code); err != nil {
			compSpan.RecordError(err)
			logger.Ctx(compCtx).Error().Err(err).Str("code", quote.Code).Msg("CRITICAL: failed to release discount redemption")
		}
	})

	order.ApplyDiscount(quote.Code, quote.Amount, quote.FreeShipping)
	span.SetAttributes(attribute.String("discount.amount", quote.Amount.String()))

	return h.executeNext(orderCtx)
}
