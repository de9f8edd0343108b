package adapter

import (
	"context"

	"marketplace/internal/service/order/domain/port"
	promotion "marketplace/internal/service/promotion/application"
)

// DiscountAdapter 实现了 port.DiscountEvaluator 接口，进程内调用促销服务。
type DiscountAdapter struct {
	service *promotion.DiscountService
}

func NewDiscountAdapter(service *promotion.DiscountService) *DiscountAdapter {
	return &DiscountAdapter{service: service}
}

func toEvaluateRequest(q port.DiscountQuery) promotion.EvaluateRequest {
	return promotion.EvaluateRequest{
		Code:       q.Code,
		Subtotal:   q.Subtotal,
		CustomerID: q.CustomerID,
		ItemCount:  q.ItemCount,
		ProductIDs: q.ProductIDs,
	}
}

func (a *DiscountAdapter) Evaluate(ctx context.Context, q port.DiscountQuery) (port.DiscountQuote, error) {
	quote, err := a.service.Evaluate(ctx, toEvaluateRequest(q))
	if err != nil {
		return port.DiscountQuote{}, err
	}
	return port.DiscountQuote{Code: quote.Code, Amount: quote.DiscountAmount, FreeShipping: quote.FreeShipping}, nil
}

func (a *DiscountAdapter) Redeem(ctx context.Context, q port.DiscountQuery) error {
	return a.service.Redeem(ctx, toEvaluateRequest(q))
}

func (a *DiscountAdapter) ReleaseRedemption(ctx context.Context, code string) error {
	return a.service.ReleaseRedemption(ctx, code)
}
