package saga

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/logger"
)

// TransactionHandler 负责管理整个责任链的事务生命周期
type TransactionHandler struct {
	NextHandler
}

func (h *TransactionHandler) Handle(orderCtx *OrderContext) (err error) {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.Transaction")
	defer span.End()
	orderCtx.Ctx = ctx

	logger.Ctx(ctx).Debug().Msg("【事务处理器】=> 开启订单处理事务...")

	defer func() {
		if r := recover(); r != nil {
			err = orderCtx.fail(StepPanic, fmt.Errorf("panic recovered: %v", r))
		}

		// 订单已落库：后续步骤的失败只记录，不释放库存和折扣
		if err != nil && orderCtx.Committed() {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).Str("order_id", orderCtx.Order.ID).
				Msg("【事务处理器】=> 订单已提交，忽略后续步骤的错误。")
			orderCtx.FailedStep = ""
			err = nil
			return
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "checkout rolled back")
			// 补偿不受请求超时影响，只保留链路信息
			compCtx := trace.ContextWithSpanContext(context.Background(), span.SpanContext())
			logger.Ctx(ctx).Warn().Err(err).Str("step", orderCtx.FailedStep).Msg("【事务处理器】=> 检测到错误，开始执行回滚...")
			orderCtx.TriggerCompensation(compCtx)
			logger.Ctx(ctx).Info().Msg("【事务处理器】=> 回滚完成。")
		} else {
			logger.Ctx(ctx).Debug().Msg("【事务处理器】=> 流程成功，事务提交。")
		}
	}()

	return h.executeNext(orderCtx)
}
