package domain

import "errors"

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrNotOwner                = errors.New("order does not belong to customer")
	ErrOrderNotEditable        = errors.New("order can no longer be edited")
	ErrInvalidInput            = errors.New("invalid input")

	// ErrStatusConflict 表示条件更新时订单状态已被并发修改
	ErrStatusConflict = errors.New("order status changed concurrently")
)
