package saga

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/service/order/domain"
)

// CustomerHandler 读取客户资料并创建订单实体
type CustomerHandler struct {
	NextHandler
}

func (h *CustomerHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Customer")
	defer span.End()

	req := orderCtx.Request
	span.SetAttributes(attribute.Int64("customer.id", req.CustomerID))
	logger.Ctx(ctx).Info().Msg("【Saga】=> 步骤 2: 读取客户资料...")

	customer, err := orderCtx.Customers.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer lookup failed")
		return orderCtx.fail(StepCustomer, err)
	}

	id := req.EventID
	if id == "" {
		id = orderCtx.NewID()
	}
	order := domain.NewOrder(id, customer, req.Note, req.PaymentMethod, orderCtx.Now())
	if addr := strings.TrimSpace(req.ShippingAddress); addr != "" {
		order.ShippingAddress = addr
	}
	orderCtx.Order = order
	span.SetAttributes(attribute.String("order.id", order.ID))

	return h.executeNext(orderCtx)
}
