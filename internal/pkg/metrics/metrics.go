// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketplace"

var (
	// OrdersCreated 成功下单数
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Number of orders committed by checkout.",
	})

	// OrdersFailed 下单失败数，reason 为失败的领域错误
	OrdersFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_failed_total",
		Help:      "Number of checkouts rolled back, by reason.",
	}, []string{"reason"})

	InventoryReservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inventory_reservations_total",
		Help:      "Inventory reserve attempts, by result.",
	}, []string{"result"})

	DiscountRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discount_redemptions_total",
		Help:      "Discount redeem attempts, by result.",
	}, []string{"result"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_transitions_total",
		Help:      "Order status transitions, by source and target status.",
	}, []string{"from", "to"})

	CheckoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checkout_duration_seconds",
		Help:      "Latency of the checkout unit of work.",
		Buckets:   prometheus.DefBuckets,
	})
)

// 结果标签
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)
