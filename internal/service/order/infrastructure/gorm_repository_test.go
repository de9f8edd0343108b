package infrastructure

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/pkg/database/dbtest"
	"marketplace/internal/service/order/domain"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) *GormOrderRepository {
	return NewGormOrderRepository(dbtest.Open(t, Models()...))
}

func sampleOrder(id string, customerID int64, at time.Time) *domain.Order {
	o := domain.NewOrder(id, &domain.Customer{ID: customerID, Name: "bob", Email: "b@example.com", Address: "road 9"}, "ring twice", "", at)
	o.AddItem(1, "A", decimal.NewFromInt(500000), 1, 10)
	o.AddItem(2, "B", decimal.NewFromInt(100000), 2, 11)
	o.ApplyDiscount("SAVE10", decimal.NewFromInt(70000), false)
	return o
}

func TestGormOrderRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Create(ctx, sampleOrder("o-1", 3, base)))

	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, "bob", got.CustomerName)
	assert.Equal(t, "CASH", got.PaymentMethod)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "A", got.Items[0].ProductName)
	assert.True(t, decimal.NewFromInt(200000).Equal(got.Items[1].Subtotal))
	assert.True(t, decimal.NewFromInt(700000).Equal(got.TotalAmount))
	assert.True(t, decimal.NewFromInt(630000).Equal(got.PayableAmount))
	require.Len(t, got.History, 1)
	assert.Equal(t, domain.StatusPending, got.History[0].To)

	_, err = repo.FindByID(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrOrderNotFound))
}

func TestGormOrderRepository_Lists(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Create(ctx, sampleOrder("o-1", 3, base)))
	require.NoError(t, repo.Create(ctx, sampleOrder("o-2", 3, base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, sampleOrder("o-3", 4, base.Add(2*time.Minute))))

	mine, err := repo.ListByCustomer(ctx, 3)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "o-2", mine[0].ID)
	assert.Len(t, mine[0].Items, 2)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "o-3", all[0].ID)

	change := domain.StatusChange{From: domain.StatusPending, To: domain.StatusConfirmed, Actor: 1, At: base.Add(time.Hour)}
	require.NoError(t, repo.UpdateStatus(ctx, "o-1", change))
	confirmed, err := repo.ListByStatus(ctx, domain.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "o-1", confirmed[0].ID)
}

func TestGormOrderRepository_UpdateStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Create(ctx, sampleOrder("o-1", 3, base)))

	cancel := domain.StatusChange{From: domain.StatusPending, To: domain.StatusCancelled, Actor: 3, Reason: "changed mind", At: base}
	require.NoError(t, repo.UpdateStatus(ctx, "o-1", cancel))

	// 第二次以 PENDING 为条件的更新必须失败
	err := repo.UpdateStatus(ctx, "o-1", cancel)
	assert.True(t, errors.Is(err, domain.ErrStatusConflict))

	err = repo.UpdateStatus(ctx, "missing", cancel)
	assert.True(t, errors.Is(err, domain.ErrOrderNotFound))

	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	require.Len(t, got.History, 2)
	assert.Equal(t, "changed mind", got.History[1].Reason)
}

func TestGormOrderRepository_UpdateShippingAddress(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Create(ctx, sampleOrder("o-1", 3, base)))

	require.NoError(t, repo.UpdateShippingAddress(ctx, "o-1", "road 10"))
	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "road 10", got.ShippingAddress)

	for _, to := range []domain.Status{domain.StatusConfirmed, domain.StatusProcessing} {
		require.NoError(t, repo.UpdateStatus(ctx, "o-1", domain.StatusChange{From: got.Status, To: to, At: base}))
		got.Status = to
	}
	err = repo.UpdateShippingAddress(ctx, "o-1", "road 11")
	assert.True(t, errors.Is(err, domain.ErrOrderNotEditable))

	err = repo.UpdateShippingAddress(ctx, "missing", "road 11")
	assert.True(t, errors.Is(err, domain.ErrOrderNotFound))
}
