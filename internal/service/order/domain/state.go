// internal/service/order/domain/state.go
package domain

import (
	"fmt"
	"strings"
)

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending    Status = "PENDING"    // 已下单，等待商家确认
	StatusConfirmed  Status = "CONFIRMED"  // 商家已确认
	StatusProcessing Status = "PROCESSING" // 备货中
	StatusShipping   Status = "SHIPPING"   // 配送中
	StatusDelivered  Status = "DELIVERED"  // 已签收
	StatusCancelled  Status = "CANCELLED"  // 已取消 (终态)
	StatusReturned   Status = "RETURNED"   // 已退货 (终态)
)

// allowedNextStates 是状态机唯一的邻接表
var allowedNextStates = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipping},
	StatusShipping:   {StatusDelivered},
	StatusDelivered:  {StatusReturned},
	StatusCancelled:  nil,
	StatusReturned:   nil,
}

// ParseStatus 大小写不敏感地解析状态
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := allowedNextStates[st]; !ok {
		return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, s)
	}
	return st, nil
}

// CanTransitionTo 判断 s -> next 是否是合法的一步
func (s Status) CanTransitionTo(next Status) bool {
	for _, st := range allowedNextStates[s] {
		if st == next {
			return true
		}
	}
	return false
}

// IsTerminal 终态不允许任何迁移
func (s Status) IsTerminal() bool {
	return len(allowedNextStates[s]) == 0
}

// Editable 只有商家尚未开始备货前，客户才能修改或取消订单
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ReleasesInventory 进入该状态时需要归还库存
func (s Status) ReleasesInventory() bool {
	return s == StatusCancelled
}
