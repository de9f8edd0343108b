package infrastructure

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"marketplace/internal/pkg/redis"
	"marketplace/internal/service/inventory/domain"
)

const (
	reserveScriptName = "inventory_reserve"
	releaseScriptName = "inventory_release"
)

// RedisLedger 把热点库存放在 Redis Hash 中，用 Lua 脚本保证检查与扣减的原子性
type RedisLedger struct {
	redisClient *redis.Client
}

// NewRedisLedger 在创建时加载所有需要的 Lua 脚本
func NewRedisLedger(redisClient *redis.Client) (*RedisLedger, error) {
	if err := redisClient.LoadScriptFromContent(reserveScriptName, reserveScript); err != nil {
		return nil, fmt.Errorf("failed to load inventory reserve script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, fmt.Errorf("failed to load inventory release script: %w", err)
	}
	return &RedisLedger{redisClient: redisClient}, nil
}

func productHashKey(productID int64) string {
	return fmt.Sprintf("inventory:product:{%d}", productID)
}

func (l *RedisLedger) Reserve(ctx context.Context, productID int64, qty int) (domain.Reservation, error) {
	if qty <= 0 {
		return domain.Reservation{}, errors.Wrapf(domain.ErrInvalidQuantity, "product %d", productID)
	}
	result, err := l.redisClient.RunScript(ctx, reserveScriptName, []string{productHashKey(productID)}, qty)
	if err != nil {
		return domain.Reservation{}, errors.Wrapf(err, "reserve product %d", productID)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) == 0 {
		return domain.Reservation{}, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}
	code, _ := values[0].(int64)
	switch code {
	case 1:
		return parseReservation(productID, qty, values[1:])
	case 0:
		return domain.Reservation{}, errors.Wrapf(domain.ErrOutOfStock, "product %d", productID)
	case -1:
		return domain.Reservation{}, errors.Wrapf(domain.ErrProductNotFound, "product %d", productID)
	case -2:
		return domain.Reservation{}, errors.Wrapf(domain.ErrProductUnavailable, "product %d", productID)
	default:
		return domain.Reservation{}, fmt.Errorf("unknown result code from reserve script: %d", code)
	}
}

func parseReservation(productID int64, qty int, fields []interface{}) (domain.Reservation, error) {
	if len(fields) != 3 {
		return domain.Reservation{}, fmt.Errorf("reserve script returned %d fields", len(fields))
	}
	name, _ := fields[0].(string)
	priceStr, _ := fields[1].(string)
	sellerStr, _ := fields[2].(string)

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return domain.Reservation{}, errors.Wrapf(err, "product %d has invalid price %q", productID, priceStr)
	}
	seller, _ := strconv.ParseInt(sellerStr, 10, 64)
	return domain.Reservation{
		ProductID: productID,
		Name:      name,
		UnitPrice: price,
		Quantity:  qty,
		SellerID:  seller,
	}, nil
}

func (l *RedisLedger) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return errors.Wrapf(domain.ErrInvalidQuantity, "product %d", productID)
	}
	result, err := l.redisClient.RunScript(ctx, releaseScriptName, []string{productHashKey(productID)}, qty)
	if err != nil {
		return errors.Wrapf(err, "release product %d", productID)
	}
	if code, _ := result.(int64); code < 0 {
		return errors.Wrapf(domain.ErrProductNotFound, "product %d", productID)
	}
	return nil
}

// PrepareProduct (测试和人工补货用) 把商品连同库存整体写入 Redis，会覆盖已有库存
func (l *RedisLedger) PrepareProduct(ctx context.Context, p domain.Product) error {
	pipe := l.redisClient.GetClient().Pipeline()
	pipe.HSet(ctx, productHashKey(p.ID),
		"name", p.Name,
		"price", p.Price.String(),
		"stock", p.Stock,
		"status", string(p.Status),
		"seller", p.SellerID,
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prepare product %d: %w", p.ID, err)
	}
	return nil
}

// Stock 读取当前库存
func (l *RedisLedger) Stock(ctx context.Context, productID int64) (int, error) {
	v, err := l.redisClient.GetClient().HGet(ctx, productHashKey(productID), "stock").Int()
	if err != nil {
		return 0, errors.Wrapf(err, "read stock of product %d", productID)
	}
	return v, nil
}

var reserveScript = `
-- KEYS[1]: 商品 Hash, 例如: inventory:product:{42}
-- ARGV[1]: 预占数量

-- 1. 商品不存在
if redis.call('exists', KEYS[1]) == 0 then
    return {-1}
end

-- 2. 商品已下架
if redis.call('hget', KEYS[1], 'status') ~= 'ACTIVE' then
    return {-2}
end

-- 3. 检查库存是否充足
local stock = tonumber(redis.call('hget', KEYS[1], 'stock'))
local qty = tonumber(ARGV[1])
if not stock or stock < qty then
    return {0}
end

-- 4. 扣减库存并返回快照
redis.call('hincrby', KEYS[1], 'stock', -qty)
return {1, redis.call('hget', KEYS[1], 'name'), redis.call('hget', KEYS[1], 'price'), redis.call('hget', KEYS[1], 'seller')}
`

var releaseScript = `
-- KEYS[1]: 商品 Hash
-- ARGV[1]: 归还数量
if redis.call('exists', KEYS[1]) == 0 then
    return -1
end
return redis.call('hincrby', KEYS[1], 'stock', tonumber(ARGV[1]))
`

// Warm 把数据库中的商品目录同步到 Redis，返回同步的商品数。
// Redis 中已有的库存是权威值，重启时只补种缺失的商品，不覆盖 stock
func (l *RedisLedger) Warm(ctx context.Context, src *GormLedger) (int, error) {
	products, err := src.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range products {
		if err := l.seedProduct(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(products), nil
}

// seedProduct 刷新目录字段，stock 只在首次写入
func (l *RedisLedger) seedProduct(ctx context.Context, p domain.Product) error {
	key := productHashKey(p.ID)
	pipe := l.redisClient.GetClient().TxPipeline()
	pipe.HSetNX(ctx, key, "stock", p.Stock)
	pipe.HSet(ctx, key,
		"name", p.Name,
		"price", p.Price.String(),
		"status", string(p.Status),
		"seller", p.SellerID,
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed product %d: %w", p.ID, err)
	}
	return nil
}
