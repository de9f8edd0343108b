package domain

import "errors"

var (
	ErrDiscountNotFound      = errors.New("discount not found")
	ErrDiscountInactive      = errors.New("discount is inactive")
	ErrDiscountExpired       = errors.New("discount is not within its validity window")
	ErrDiscountExhausted     = errors.New("discount usage limit reached")
	ErrOrderBelowMinimum     = errors.New("order amount is below the discount minimum")
	ErrDiscountNotApplicable = errors.New("order does not satisfy the discount rule")
	ErrInvalidRule           = errors.New("invalid discount rule")
	ErrInvalidDiscount       = errors.New("invalid discount")
	ErrDuplicateCode         = errors.New("discount code already exists")
)
