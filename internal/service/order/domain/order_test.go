package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestOrder() *Order {
	return NewOrder("o-1", &Customer{ID: 42, Name: "alice", Email: "a@example.com", Phone: "1", Address: "road 1"}, "", "", now)
}

func TestNewOrder_Snapshot(t *testing.T) {
	o := newTestOrder()
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, DefaultPaymentMethod, o.PaymentMethod)
	assert.Equal(t, "road 1", o.ShippingAddress)
	require.Len(t, o.History, 1)
	assert.Equal(t, StatusPending, o.History[0].To)

	o.AddItem(1, "A", decimal.NewFromInt(500000), 1, 9)
	o.AddItem(2, "B", decimal.NewFromInt(100000), 2, 9)
	assert.True(t, decimal.NewFromInt(700000).Equal(o.TotalAmount))
	assert.True(t, decimal.NewFromInt(200000).Equal(o.Items[1].Subtotal))

	o.ApplyDiscount("SAVE10", decimal.NewFromInt(70000), false)
	assert.True(t, decimal.NewFromInt(630000).Equal(o.PayableAmount))
	assert.True(t, decimal.NewFromInt(700000).Equal(o.TotalAmount))

	o.ApplyDiscount("BIG", decimal.NewFromInt(900000), false)
	assert.True(t, o.PayableAmount.IsZero())
}

func TestStatus_Adjacency(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusProcessing, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusProcessing, StatusShipping, true},
		{StatusShipping, StatusDelivered, true},
		{StatusDelivered, StatusReturned, true},
		{StatusDelivered, StatusPending, false},
		{StatusPending, StatusProcessing, false},
		{StatusProcessing, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusReturned, StatusDelivered, false},
		{StatusPending, StatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusReturned.IsTerminal())
	assert.False(t, StatusDelivered.IsTerminal())
}

func TestOrder_TransitionTo(t *testing.T) {
	o := newTestOrder()
	change, err := o.TransitionTo(StatusConfirmed, 1, "", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, change.From)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Len(t, o.History, 2)

	_, err = o.TransitionTo(StatusDelivered, 1, "", now)
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Len(t, o.History, 2)
}

func TestOrder_ChangeShippingAddress(t *testing.T) {
	o := newTestOrder()
	assert.True(t, errors.Is(o.ChangeShippingAddress("  ", now), ErrInvalidInput))
	require.NoError(t, o.ChangeShippingAddress("road 2", now))
	assert.Equal(t, "road 2", o.ShippingAddress)

	o.Status = StatusShipping
	assert.True(t, errors.Is(o.ChangeShippingAddress("road 3", now), ErrOrderNotEditable))
	assert.Equal(t, "road 2", o.ShippingAddress)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" shipping ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipping, st)

	_, err = ParseStatus("LOST")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
