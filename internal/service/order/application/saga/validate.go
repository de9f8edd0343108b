package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/service/order/domain"
)

// ValidateHandler 校验下单请求并合并重复的商品行
type ValidateHandler struct {
	NextHandler
}

func (h *ValidateHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Validate")
	defer span.End()

	logger.Ctx(ctx).Info().Msg("【Saga】=> 步骤 1: 校验下单请求...")

	lines, err := mergeLines(orderCtx.Request.Items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid checkout request")
		return orderCtx.fail(StepValidate, err)
	}
	if orderCtx.Request.CustomerID <= 0 {
		return orderCtx.fail(StepValidate, fmt.Errorf("%w: customer id is required", domain.ErrInvalidInput))
	}
	orderCtx.Lines = lines
	span.SetAttributes(attribute.Int("order.lines", len(lines)))

	return h.executeNext(orderCtx)
}

// mergeLines 同一商品的多行合并为一行，保持首次出现的顺序
func mergeLines(items []domain.LineRequest) ([]domain.LineRequest, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", domain.ErrInvalidInput)
	}
	index := make(map[int64]int, len(items))
	merged := make([]domain.LineRequest, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return nil, fmt.Errorf("%w: invalid product id %d", domain.ErrInvalidInput, it.ProductID)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %d must be positive", domain.ErrInvalidInput, it.ProductID)
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}
