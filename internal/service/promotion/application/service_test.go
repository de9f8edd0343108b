package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"marketplace/internal/pkg/database/dbtest"
	"marketplace/internal/service/promotion/domain"
	"marketplace/internal/service/promotion/infrastructure"
	"marketplace/internal/service/promotion/infrastructure/rule"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) *DiscountService {
	db := dbtest.Open(t, &infrastructure.DiscountModel{})
	engine, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	svc := NewDiscountService(infrastructure.NewGormDiscountRepository(db), engine, otel.Tracer("test"))
	svc.SetClock(func() time.Time { return fixedNow })
	return svc
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := dec(v)
	return &d
}

func intPtr(v int) *int { return &v }

func save10() *DiscountRequest {
	return &DiscountRequest{
		Code:          "save10",
		Name:          "10% off",
		DiscountType:  "PERCENTAGE",
		DiscountValue: dec(10),
		MinOrderValue: decPtr(200000),
	}
}

func TestDiscountService_EvaluateDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	created, err := svc.Create(ctx, 1, save10())
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", created.Code)

	for i := 0; i < 3; i++ {
		q, err := svc.Evaluate(ctx, EvaluateRequest{Code: "Save10", Subtotal: dec(700000)})
		require.NoError(t, err)
		assert.True(t, dec(70000).Equal(q.DiscountAmount))
		assert.True(t, dec(630000).Equal(q.FinalAmount))
		assert.False(t, q.FreeShipping)
	}

	got, err := svc.GetByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsedCount)

	_, err = svc.Evaluate(ctx, EvaluateRequest{Code: "SAVE10", Subtotal: dec(100000)})
	assert.ErrorIs(t, err, domain.ErrOrderBelowMinimum)

	_, err = svc.Evaluate(ctx, EvaluateRequest{Code: "UNKNOWN", Subtotal: dec(100000)})
	assert.ErrorIs(t, err, domain.ErrDiscountNotFound)
}

func TestDiscountService_RedeemAndRelease(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	req := save10()
	req.UsageLimit = intPtr(1)
	_, err := svc.Create(ctx, 1, req)
	require.NoError(t, err)

	order := EvaluateRequest{Code: "SAVE10", Subtotal: dec(700000)}
	require.NoError(t, svc.Redeem(ctx, order))
	assert.ErrorIs(t, svc.Redeem(ctx, order), domain.ErrDiscountExhausted)
	_, err = svc.Evaluate(ctx, order)
	assert.ErrorIs(t, err, domain.ErrDiscountExhausted)

	require.NoError(t, svc.ReleaseRedemption(ctx, "save10"))
	require.NoError(t, svc.Redeem(ctx, order))
}

func TestDiscountService_Window(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	start := fixedNow.Add(24 * time.Hour)
	req := save10()
	req.Code = "LATER"
	req.StartDate = &start
	_, err := svc.Create(ctx, 1, req)
	require.NoError(t, err)

	_, err = svc.Evaluate(ctx, EvaluateRequest{Code: "LATER", Subtotal: dec(700000)})
	assert.ErrorIs(t, err, domain.ErrDiscountExpired)

	valid, err := svc.ListValid(ctx)
	require.NoError(t, err)
	assert.Empty(t, valid)

	svc.SetClock(func() time.Time { return start.Add(time.Minute) })
	valid, err = svc.ListValid(ctx)
	require.NoError(t, err)
	assert.Len(t, valid, 1)
}

func TestDiscountService_Rules(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	req := &DiscountRequest{
		Code:          "BUNDLE",
		Name:          "Bundle deal",
		DiscountType:  "FIXED_AMOUNT",
		DiscountValue: dec(5000),
		Rule:          "item_count >= 3 && 7 in product_ids",
	}
	_, err := svc.Create(ctx, 1, req)
	require.NoError(t, err)

	_, err = svc.Evaluate(ctx, EvaluateRequest{Code: "BUNDLE", Subtotal: dec(90000), ItemCount: 2, ProductIDs: []int64{7}})
	assert.ErrorIs(t, err, domain.ErrDiscountNotApplicable)
	assert.ErrorIs(t, svc.Redeem(ctx, EvaluateRequest{Code: "BUNDLE", Subtotal: dec(90000), ItemCount: 2}), domain.ErrDiscountNotApplicable)

	q, err := svc.Evaluate(ctx, EvaluateRequest{Code: "BUNDLE", Subtotal: dec(90000), ItemCount: 3, ProductIDs: []int64{7, 8}})
	require.NoError(t, err)
	assert.True(t, dec(5000).Equal(q.DiscountAmount))

	bad := *req
	bad.Code = "BROKEN"
	bad.Rule = "item_count >>> 3"
	_, err = svc.Create(ctx, 1, &bad)
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
}

func TestDiscountService_AdminLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	a, err := svc.Create(ctx, 10, save10())
	require.NoError(t, err)
	_, err = svc.Create(ctx, 11, &DiscountRequest{Code: "SHIPFREE", Name: "Free shipping", DiscountType: "FREE_SHIPPING", DiscountValue: dec(1)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, 10, save10())
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)

	invalid := save10()
	invalid.Code = "TOOMUCH"
	invalid.DiscountValue = dec(150)
	_, err = svc.Create(ctx, 10, invalid)
	assert.ErrorIs(t, err, domain.ErrInvalidDiscount)

	// 改成已存在的 code
	clash := save10()
	clash.Code = "shipfree"
	_, err = svc.Update(ctx, a.ID, clash)
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)

	renamed := save10()
	renamed.Name = "Ten percent"
	updated, err := svc.Update(ctx, a.ID, renamed)
	require.NoError(t, err)
	assert.Equal(t, "Ten percent", updated.Name)

	mine, err := svc.ListByCreator(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	found, err := svc.Search(ctx, "ship")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "SHIPFREE", found[0].Code)

	require.NoError(t, svc.Deactivate(ctx, a.ID))
	_, err = svc.GetByCode(ctx, "SAVE10")
	assert.ErrorIs(t, err, domain.ErrDiscountNotFound)
	_, err = svc.Evaluate(ctx, EvaluateRequest{Code: "SAVE10", Subtotal: dec(700000)})
	assert.ErrorIs(t, err, domain.ErrDiscountInactive)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	reactivated, err := svc.SetStatus(ctx, a.ID, "active")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", reactivated.Status)

	_, err = svc.SetStatus(ctx, a.ID, "archived")
	assert.ErrorIs(t, err, domain.ErrInvalidDiscount)
	assert.ErrorIs(t, svc.Deactivate(ctx, 404), domain.ErrDiscountNotFound)
}

func TestDiscountService_UpdateCannotLowerLimitBelowUsage(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	req := save10()
	req.UsageLimit = intPtr(5)
	created, err := svc.Create(ctx, 1, req)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Redeem(ctx, EvaluateRequest{Code: "SAVE10", Subtotal: dec(700000)}))
	}

	lower := save10()
	lower.UsageLimit = intPtr(2)
	_, err = svc.Update(ctx, created.ID, lower)
	assert.ErrorIs(t, err, domain.ErrInvalidDiscount)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.UsageLimit)
	assert.Equal(t, 5, *got.UsageLimit)
	assert.Equal(t, 3, got.UsedCount)

	exact := save10()
	exact.UsageLimit = intPtr(3)
	updated, err := svc.Update(ctx, created.ID, exact)
	require.NoError(t, err)
	assert.Equal(t, 3, *updated.UsageLimit)
	_, err = svc.Evaluate(ctx, EvaluateRequest{Code: "SAVE10", Subtotal: dec(700000)})
	assert.ErrorIs(t, err, domain.ErrDiscountExhausted)
}

type stubCreators struct {
	names map[int64]string
	err   error
	calls int
}

func (s *stubCreators) Usernames(_ context.Context, ids []int64) (map[int64]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func TestDiscountService_PresentsUsageAndCreator(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	creators := &stubCreators{names: map[int64]string{1: "staff"}}
	svc.SetCreatorDirectory(creators)

	req := save10()
	req.UsageLimit = intPtr(4)
	created, err := svc.Create(ctx, 1, req)
	require.NoError(t, err)
	assert.Equal(t, "staff", created.CreatedByUsername)
	require.NotNil(t, created.UsagePercentage)
	assert.True(t, created.UsagePercentage.IsZero())

	require.NoError(t, svc.Redeem(ctx, EvaluateRequest{Code: "SAVE10", Subtotal: dec(700000)}))
	got, err := svc.GetByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.True(t, dec(25).Equal(*got.UsagePercentage))

	unlimited := save10()
	unlimited.Code = "OPS5"
	_, err = svc.Create(ctx, 2, unlimited)
	require.NoError(t, err)
	all, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	byCode := map[string]*DiscountDTO{}
	for _, d := range all {
		byCode[d.Code] = d
	}
	assert.Equal(t, "staff", byCode["SAVE10"].CreatedByUsername)
	assert.Empty(t, byCode["OPS5"].CreatedByUsername)
	assert.Nil(t, byCode["OPS5"].UsagePercentage)

	// 用户目录不可用时仍返回折扣码
	creators.err = errors.New("users table unavailable")
	got, err = svc.GetByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Empty(t, got.CreatedByUsername)
	assert.Equal(t, 1, got.UsedCount)
}
