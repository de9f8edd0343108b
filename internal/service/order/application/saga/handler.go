package saga

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/service/order/domain"
	"marketplace/internal/service/order/domain/port"
)

// 失败步骤，作为 orders_failed_total 的 reason 标签
const (
	StepValidate  = "validate"
	StepCustomer  = "customer"
	StepInventory = "inventory"
	StepDiscount  = "discount"
	StepPersist   = "persist"
	StepPanic     = "panic"
)

// OrderContext 在 Saga 流程中传递上下文数据。
// 所有外部依赖都是出站端口。
type OrderContext struct {
	Ctx     context.Context
	Tracer  trace.Tracer
	Request *domain.CheckoutRequested
	Now     func() time.Time
	NewID   func() string

	// 依赖出站端口 (Interfaces)
	Customers port.CustomerDirectory
	Inventory port.InventoryLedger
	Discounts port.DiscountEvaluator
	Repo      domain.OrderRepository
	Cart      port.CartStore
	Publisher port.EventPublisher

	// 由各步骤填充
	Lines      []domain.LineRequest
	Order      *domain.Order
	FailedStep string

	compensations []func(ctx context.Context)
	compLock      sync.Mutex
	committed     bool
}

// MarkCommitted 标记订单已落库，此后不再回滚
func (c *OrderContext) MarkCommitted() { c.committed = true }

func (c *OrderContext) Committed() bool { return c.committed }

// AddCompensation 以 LIFO 顺序登记补偿
func (c *OrderContext) AddCompensation(comp func(ctx context.Context)) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]func(context.Context){comp}, c.compensations...)
}

// TriggerCompensation 依次执行所有已登记的补偿，执行后清空
func (c *OrderContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Warn().Str("event_id", c.Request.EventID).
		Int("compensations", len(c.compensations)).Msg("executing compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
	c.compensations = nil
}

func (c *OrderContext) fail(step string, err error) error {
	if c.FailedStep == "" {
		c.FailedStep = step
	}
	return err
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// BuildCheckoutChain 组装下单责任链，TransactionHandler 位于链首
func BuildCheckoutChain() Handler {
	chain := new(TransactionHandler)
	chain.SetNext(new(ValidateHandler)).
		SetNext(new(CustomerHandler)).
		SetNext(new(InventoryHandler)).
		SetNext(new(DiscountHandler)).
		SetNext(new(CreateOrderHandler)).
		SetNext(new(CartHandler)).
		SetNext(new(NotificationHandler))
	return chain
}
