package rule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/service/promotion/domain"
)

func TestCELRuleEngine_Evaluate(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	fact := domain.Fact{
		Subtotal:   decimal.NewFromInt(700000),
		ItemCount:  3,
		CustomerID: 42,
		ProductIDs: []int64{1, 2},
	}

	tests := []struct {
		rule string
		want bool
	}{
		{"subtotal >= 500000.0", true},
		{"subtotal > 700000.0", false},
		{"item_count >= 3 && customer_id == 42", true},
		{"2 in product_ids", true},
		{"99 in product_ids", false},
		{"size(product_ids) == 2", true},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			got, err := engine.Evaluate(tt.rule, fact)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELRuleEngine_EmptyProductList(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	got, err := engine.Evaluate("size(product_ids) == 0", domain.Fact{})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCELRuleEngine_Validate(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	assert.NoError(t, engine.Validate("item_count > 1"))
	assert.ErrorIs(t, engine.Validate("item_count >"), domain.ErrInvalidRule)
	assert.ErrorIs(t, engine.Validate("unknown_var == 1"), domain.ErrInvalidRule)
	assert.ErrorIs(t, engine.Validate("subtotal * 2.0"), domain.ErrInvalidRule, "non-bool output")
}
