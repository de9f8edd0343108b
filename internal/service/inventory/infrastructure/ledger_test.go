package infrastructure

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/pkg/database/dbtest"
	"marketplace/internal/pkg/redis"
	"marketplace/internal/service/inventory/domain"
)

// stockReader 是各实现读取当前库存的方式
type stockReader func(t *testing.T, id int64) int

type ledgerFactory func(t *testing.T, products ...domain.Product) (domain.Ledger, stockReader)

func newGormLedger(t *testing.T, products ...domain.Product) (domain.Ledger, stockReader) {
	db := dbtest.Open(t, &ProductModel{})
	l := NewGormLedger(db)
	for i := range products {
		require.NoError(t, l.SaveProduct(context.Background(), &products[i]))
	}
	return l, func(t *testing.T, id int64) int {
		p, err := l.GetProduct(context.Background(), id)
		require.NoError(t, err)
		return p.Stock
	}
}

func newRedisLedger(t *testing.T, products ...domain.Product) (domain.Ledger, stockReader) {
	mr := miniredis.RunT(t)
	client := redis.NewFromUniversal(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	l, err := NewRedisLedger(client)
	require.NoError(t, err)
	for _, p := range products {
		require.NoError(t, l.PrepareProduct(context.Background(), p))
	}
	return l, func(t *testing.T, id int64) int {
		v, err := l.Stock(context.Background(), id)
		require.NoError(t, err)
		return v
	}
}

func newMemoryLedger(_ *testing.T, products ...domain.Product) (domain.Ledger, stockReader) {
	l := NewMemoryLedger(products...)
	return l, func(t *testing.T, id int64) int {
		p, err := l.GetProduct(context.Background(), id)
		require.NoError(t, err)
		return p.Stock
	}
}

var factories = map[string]ledgerFactory{
	"gorm":   newGormLedger,
	"redis":  newRedisLedger,
	"memory": newMemoryLedger,
}

func catalog() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Keyboard", Price: decimal.NewFromInt(500000), Stock: 10, Status: domain.ProductActive, SellerID: 7},
		{ID: 2, Name: "Mouse", Price: decimal.RequireFromString("99.50"), Stock: 5, Status: domain.ProductActive, SellerID: 8},
		{ID: 3, Name: "Retired", Price: decimal.NewFromInt(10), Stock: 100, Status: domain.ProductInactive, SellerID: 7},
	}
}

func TestLedger_Reserve(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, stock := factory(t, catalog()...)

			r, err := l.Reserve(ctx, 1, 3)
			require.NoError(t, err)
			assert.Equal(t, int64(1), r.ProductID)
			assert.Equal(t, "Keyboard", r.Name)
			assert.True(t, decimal.NewFromInt(500000).Equal(r.UnitPrice), r.UnitPrice.String())
			assert.Equal(t, 3, r.Quantity)
			assert.Equal(t, int64(7), r.SellerID)
			assert.Equal(t, 7, stock(t, 1))

			r, err = l.Reserve(ctx, 2, 5)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString("99.5").Equal(r.UnitPrice))
			assert.Equal(t, 0, stock(t, 2))
		})
	}
}

func TestLedger_ReserveFailures(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, stock := factory(t, catalog()...)

			_, err := l.Reserve(ctx, 2, 6)
			assert.ErrorIs(t, err, domain.ErrOutOfStock)
			assert.Contains(t, err.Error(), "product 2")
			assert.Equal(t, 5, stock(t, 2), "failed reserve must not touch stock")

			_, err = l.Reserve(ctx, 3, 1)
			assert.ErrorIs(t, err, domain.ErrProductUnavailable)
			assert.Equal(t, 100, stock(t, 3))

			_, err = l.Reserve(ctx, 404, 1)
			assert.ErrorIs(t, err, domain.ErrProductNotFound)

			_, err = l.Reserve(ctx, 1, 0)
			assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
		})
	}
}

func TestLedger_Release(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, stock := factory(t, catalog()...)

			_, err := l.Reserve(ctx, 1, 4)
			require.NoError(t, err)
			require.NoError(t, l.Release(ctx, 1, 4))
			assert.Equal(t, 10, stock(t, 1))

			// 下架商品也可以归还库存
			require.NoError(t, l.Release(ctx, 3, 1))
			assert.Equal(t, 101, stock(t, 3))

			assert.ErrorIs(t, l.Release(ctx, 404, 1), domain.ErrProductNotFound)
			assert.ErrorIs(t, l.Release(ctx, 1, -1), domain.ErrInvalidQuantity)
		})
	}
}

func TestLedger_NoOversell(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, stock := factory(t, catalog()...)

			const workers = 30
			var (
				wg       sync.WaitGroup
				reserved atomic.Int64
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(qty int) {
					defer wg.Done()
					if _, err := l.Reserve(ctx, 1, qty); err == nil {
						reserved.Add(int64(qty))
					} else {
						assert.ErrorIs(t, err, domain.ErrOutOfStock)
					}
				}(1 + i%2)
			}
			wg.Wait()

			left := stock(t, 1)
			assert.GreaterOrEqual(t, left, 0)
			assert.Equal(t, int64(10), reserved.Load()+int64(left))
		})
	}
}

func TestRedisLedger_WarmFromDatabase(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, &ProductModel{})
	src := NewGormLedger(db)
	products := catalog()
	for i := range products {
		require.NoError(t, src.SaveProduct(ctx, &products[i]))
	}

	mr := miniredis.RunT(t)
	client := redis.NewFromUniversal(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	dst, err := NewRedisLedger(client)
	require.NoError(t, err)

	n, err := dst.Warm(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r, err := dst.Reserve(ctx, 2, 2)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("99.5").Equal(r.UnitPrice))
	left, err := dst.Stock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, left)

	_, err = dst.Reserve(ctx, 3, 1)
	assert.ErrorIs(t, err, domain.ErrProductUnavailable)
}

func TestRedisLedger_WarmKeepsLiveStock(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, &ProductModel{})
	src := NewGormLedger(db)
	products := catalog()
	for i := range products {
		require.NoError(t, src.SaveProduct(ctx, &products[i]))
	}

	mr := miniredis.RunT(t)
	client := redis.NewFromUniversal(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	dst, err := NewRedisLedger(client)
	require.NoError(t, err)

	_, err = dst.Warm(ctx, src)
	require.NoError(t, err)
	_, err = dst.Reserve(ctx, 2, 5)
	require.NoError(t, err)

	// 模拟重启：数据库里的 stock 仍是 5
	products[1].Price = decimal.NewFromInt(120)
	require.NoError(t, src.SaveProduct(ctx, &products[1]))
	_, err = dst.Warm(ctx, src)
	require.NoError(t, err)

	_, err = dst.Reserve(ctx, 2, 1)
	assert.ErrorIs(t, err, domain.ErrOutOfStock)
	left, err := dst.Stock(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	require.NoError(t, dst.Release(ctx, 2, 1))
	r, err := dst.Reserve(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(r.UnitPrice))
}
