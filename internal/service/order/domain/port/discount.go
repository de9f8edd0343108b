package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// DiscountQuery 描述试算/核销所针对的订单
type DiscountQuery struct {
	Code       string
	Subtotal   decimal.Decimal
	CustomerID int64
	ItemCount  int
	ProductIDs []int64
}

// DiscountQuote 是试算结果
type DiscountQuote struct {
	Code         string
	Amount       decimal.Decimal
	FreeShipping bool
}

// DiscountEvaluator 是折扣服务的出站端口。
type DiscountEvaluator interface {
	// Evaluate 只试算，不修改使用次数
	Evaluate(ctx context.Context, q DiscountQuery) (DiscountQuote, error)
	// Redeem 重新校验并原子地占用一次
	Redeem(ctx context.Context, q DiscountQuery) error
	// ReleaseRedemption 是 Redeem 的补偿操作
	ReleaseRedemption(ctx context.Context, code string) error
}
