package saga

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/service/order/domain/port"
)

// InventoryHandler 负责库存预占步骤。
// 每预占成功一行就登记一个释放补偿，后续任一步失败都会全部归还。
type InventoryHandler struct {
	NextHandler
}

func (h *InventoryHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.InventoryReserve")
	defer span.End()

	logger.Ctx(ctx).Info().Msg("【Saga】=> 步骤 3: 预占库存...")

	for _, line := range orderCtx.Lines {
		r, err := orderCtx.Inventory.Reserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			metrics.InventoryReservations.WithLabelValues(metrics.ResultFailed).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "Inventory reservation failed")
			span.SetAttributes(attribute.Int64("failed.product_id", line.ProductID))
			return orderCtx.fail(StepInventory, errors.Wrapf(err, "reserve product %d", line.ProductID))
		}
		metrics.InventoryReservations.WithLabelValues(metrics.ResultOK).Inc()
		orderCtx.AddCompensation(releaseCompensation(orderCtx, r))
		orderCtx.Order.AddItem(r.ProductID, r.Name, r.UnitPrice, r.Quantity, r.SellerID)
	}

	span.SetAttributes(attribute.String("order.total", orderCtx.Order.TotalAmount.String()))
	span.AddEvent("All items reserved successfully")

	return h.executeNext(orderCtx)
}

func releaseCompensation(orderCtx *OrderContext, r port.Reservation) func(context.Context) {
	return func(compCtx context.Context) {
		compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.ReleaseStock")
		defer compSpan.End()
		compSpan.SetAttributes(attribute.Int64("product.id", r.ProductID), attribute.Int("quantity", r.Quantity))

		// 补偿失败需要人工介入
		if err := orderCtx.Inventory.Release(compCtx, r.ProductID, r.Quantity); err != nil {
			compSpan.RecordError(err)
			logger.Ctx(compCtx).Error().Err(err).Int64("product_id", r.ProductID).Int("quantity", r.Quantity).
				Msg("CRITICAL: failed to release reserved stock")
		}
	}
}
