package adapter

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// CartRedisAdapter 实现了 port.CartStore 接口，购物车保存在 cart:{customerId} 下
type CartRedisAdapter struct {
	rdb redis.UniversalClient
}

func NewCartRedisAdapter(rdb redis.UniversalClient) *CartRedisAdapter {
	return &CartRedisAdapter{rdb: rdb}
}

func CartKey(customerID int64) string {
	return fmt.Sprintf("cart:%d", customerID)
}

func (a *CartRedisAdapter) Clear(ctx context.Context, customerID int64) error {
	return errors.Wrapf(a.rdb.Del(ctx, CartKey(customerID)).Err(), "clear cart of customer %d", customerID)
}
