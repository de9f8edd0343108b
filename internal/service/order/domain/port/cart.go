package port

import "context"

// CartStore 是购物车服务的出站端口，下单成功后清空
type CartStore interface {
	Clear(ctx context.Context, customerID int64) error
}
