// internal/service/order/application/service.go
package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/service/order/application/saga"
	"marketplace/internal/service/order/domain"
	"marketplace/internal/service/order/domain/port"
)

// ErrAsyncCheckoutDisabled 未配置下单队列时返回
var ErrAsyncCheckoutDisabled = errors.New("async checkout is disabled")

// OrderApplicationService 只关注业务流程编排。
type OrderApplicationService struct {
	repo            domain.OrderRepository
	tracer          trace.Tracer
	checkoutTimeout time.Duration

	customers port.CustomerDirectory
	inventory port.InventoryLedger
	discounts port.DiscountEvaluator
	cart      port.CartStore
	publisher port.EventPublisher

	// 可选
	locker port.Locker
	queue  port.CheckoutQueue

	chain saga.Handler
	now   func() time.Time
	newID func() string
}

func NewOrderApplicationService(repo domain.OrderRepository, tracer trace.Tracer, checkoutTimeout time.Duration, customers port.CustomerDirectory, inventory port.InventoryLedger, discounts port.DiscountEvaluator, cart port.CartStore, publisher port.EventPublisher) *OrderApplicationService {
	return &OrderApplicationService{
		repo: repo, tracer: tracer, checkoutTimeout: checkoutTimeout,
		customers: customers, inventory: inventory, discounts: discounts,
		cart: cart, publisher: publisher,
		chain: saga.BuildCheckoutChain(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// SetLocker 开启同一客户的下单互斥
func (s *OrderApplicationService) SetLocker(l port.Locker) { s.locker = l }

// SetCheckoutQueue 开启异步下单
func (s *OrderApplicationService) SetCheckoutQueue(q port.CheckoutQueue) { s.queue = q }

func (s *OrderApplicationService) SetClock(now func() time.Time) { s.now = now }

// CreateOrder 同步下单：预占库存、核销折扣、持久化订单，任一步失败全部回滚
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderDTO, error) {
	order, err := s.checkout(ctx, req.ToCheckoutRequested("", s.now()))
	if err != nil {
		return nil, err
	}
	return ToOrderDTO(order), nil
}

func (s *OrderApplicationService) checkout(ctx context.Context, cmd *domain.CheckoutRequested) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("customer.id", cmd.CustomerID), attribute.Int("order.lines", len(cmd.Items)))

	start := time.Now()
	defer func() { metrics.CheckoutDuration.Observe(time.Since(start).Seconds()) }()

	// 1. 为每个订单的处理流程设置独立的超时时间
	if s.checkoutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.checkoutTimeout)
		defer cancel()
	}

	// 2. 同一客户的下单串行化，防止同一购物车被重复提交
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, fmt.Sprintf("checkout:customer:%d", cmd.CustomerID))
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(err, "acquire checkout lock")
		}
		defer unlock()
	}

	// 3. 构造责任链所需的上下文
	orderCtx := &saga.OrderContext{
		Ctx:       ctx,
		Tracer:    s.tracer,
		Request:   cmd,
		Now:       s.now,
		NewID:     s.newID,
		Customers: s.customers,
		Inventory: s.inventory,
		Discounts: s.discounts,
		Repo:      s.repo,
		Cart:      s.cart,
		Publisher: s.publisher,
	}

	// 4. 执行责任链
	if err := s.chain.Handle(orderCtx); err != nil {
		metrics.OrdersFailed.WithLabelValues(orderCtx.FailedStep).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Order processing failed in chain")
		logger.Ctx(ctx).Warn().Err(err).Int64("customer_id", cmd.CustomerID).Str("step", orderCtx.FailedStep).
			Msg("checkout failed, compensation triggered")
		return nil, err
	}

	metrics.OrdersCreated.Inc()
	span.SetAttributes(attribute.String("order.id", orderCtx.Order.ID))
	logger.Ctx(ctx).Info().Str("order_id", orderCtx.Order.ID).Str("payable", orderCtx.Order.PayableAmount.String()).
		Msg("order placed")
	return orderCtx.Order, nil
}

// RequestCheckout 把下单命令写入队列后立即返回，订单号即事件ID
func (s *OrderApplicationService) RequestCheckout(ctx context.Context, req *CreateOrderRequest) (*CheckoutAccepted, error) {
	ctx, span := s.tracer.Start(ctx, "app.RequestCheckout")
	defer span.End()

	if s.queue == nil {
		return nil, ErrAsyncCheckoutDisabled
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", domain.ErrInvalidInput)
	}

	cmd := req.ToCheckoutRequested(s.newID(), s.now())
	if err := s.queue.Enqueue(ctx, cmd); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enqueue checkout")
		return nil, err
	}
	span.AddEvent("Checkout request sent to queue.")

	return &CheckoutAccepted{
		OrderID: cmd.EventID,
		Status:  domain.StatusPending,
		Message: "Your order is being processed.",
	}, nil
}

// HandleCheckoutRequested 是异步下单的入口，由 Kafka 消费者调用。
// 同一事件重复投递时直接忽略。
func (s *OrderApplicationService) HandleCheckoutRequested(ctx context.Context, cmd *domain.CheckoutRequested) error {
	ctx, span := s.tracer.Start(ctx, "app.HandleCheckoutRequested", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	if cmd.EventID == "" {
		return fmt.Errorf("%w: event id is required", domain.ErrInvalidInput)
	}
	if _, err := s.repo.FindByID(ctx, cmd.EventID); err == nil {
		logger.Ctx(ctx).Info().Str("event_id", cmd.EventID).Msg("checkout already processed, skipping")
		return nil
	} else if !errors.Is(err, domain.ErrOrderNotFound) {
		return err
	}

	if _, err := s.checkout(ctx, cmd); err != nil {
		s.publish(ctx, domain.OrderCreationFailed{
			EventID:    cmd.EventID,
			CustomerID: cmd.CustomerID,
			Reason:     err.Error(),
			At:         s.now(),
		})
		return err
	}
	return nil
}

// CancelOrder 客户取消自己的订单，只允许 PENDING / CONFIRMED
func (s *OrderApplicationService) CancelOrder(ctx context.Context, orderID string, customerID int64) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsOwnedBy(customerID) {
		return nil, errors.Wrapf(domain.ErrNotOwner, "order %s", orderID)
	}
	if !o.Status.Editable() {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidStatusTransition, orderID, o.Status)
	}
	return s.transition(ctx, o, domain.StatusCancelled, customerID, "cancelled by customer")
}

// UpdateOrderStatus 管理端推进订单状态，严格按邻接表
func (s *OrderApplicationService) UpdateOrderStatus(ctx context.Context, orderID, status string, actor int64, reason string) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.next_status", status))

	next, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, o, next, actor, reason)
}

// transition 先以旧状态为条件写入新状态，只有赢得条件更新的一方才会归还库存
func (s *OrderApplicationService) transition(ctx context.Context, o *domain.Order, next domain.Status, actor int64, reason string) (*OrderDTO, error) {
	change, err := o.TransitionTo(next, actor, reason, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, o.ID, change); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: order %s was modified concurrently", domain.ErrInvalidStatusTransition, o.ID)
		}
		return nil, err
	}

	if next.ReleasesInventory() {
		if err := s.releaseItems(ctx, o.Items); err != nil {
			s.revertStatus(ctx, o, change)
			return nil, err
		}
	}

	metrics.StatusTransitions.WithLabelValues(string(change.From), string(change.To)).Inc()
	logger.Ctx(ctx).Info().Str("order_id", o.ID).Str("from", string(change.From)).Str("to", string(change.To)).
		Int64("actor", actor).Msg("order status changed")
	s.publish(ctx, domain.OrderStatusChanged{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		From:       change.From,
		To:         change.To,
		Actor:      actor,
		Reason:     reason,
		At:         change.At,
	})
	return ToOrderDTO(o), nil
}

// releaseItems 归还每一行的库存；中途失败时把已归还的重新预占
func (s *OrderApplicationService) releaseItems(ctx context.Context, items []domain.OrderItem) error {
	for i, it := range items {
		if err := s.inventory.Release(ctx, it.ProductID, it.Quantity); err != nil {
			for _, done := range items[:i] {
				if _, rerr := s.inventory.Reserve(ctx, done.ProductID, done.Quantity); rerr != nil {
					logger.Ctx(ctx).Error().Err(rerr).Int64("product_id", done.ProductID).
						Msg("CRITICAL: failed to re-reserve stock after partial release")
				}
			}
			return errors.Wrapf(err, "release product %d", it.ProductID)
		}
	}
	return nil
}

func (s *OrderApplicationService) revertStatus(ctx context.Context, o *domain.Order, change domain.StatusChange) {
	back := domain.StatusChange{
		From:   change.To,
		To:     change.From,
		Actor:  change.Actor,
		Reason: "rollback: inventory release failed",
		At:     s.now(),
	}
	if err := s.repo.UpdateStatus(ctx, o.ID, back); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("order_id", o.ID).Msg("CRITICAL: failed to roll back order status")
		return
	}
	o.Status = change.From
}

// UpdateShippingAddress 客户修改收货地址
func (s *OrderApplicationService) UpdateShippingAddress(ctx context.Context, orderID string, customerID int64, address string) (*OrderDTO, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateShippingAddress")
	defer span.End()

	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsOwnedBy(customerID) {
		return nil, errors.Wrapf(domain.ErrNotOwner, "order %s", orderID)
	}
	if err := o.ChangeShippingAddress(address, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateShippingAddress(ctx, o.ID, o.ShippingAddress); err != nil {
		return nil, err
	}
	return ToOrderDTO(o), nil
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID string) (*OrderDTO, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return ToOrderDTO(o), nil
}

// GetOrderForCustomer 只返回属于该客户的订单
func (s *OrderApplicationService) GetOrderForCustomer(ctx context.Context, orderID string, customerID int64) (*OrderDTO, error) {
	o, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsOwnedBy(customerID) {
		return nil, errors.Wrapf(domain.ErrNotOwner, "order %s", orderID)
	}
	return ToOrderDTO(o), nil
}

func (s *OrderApplicationService) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]*OrderDTO, error) {
	orders, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return toOrderDTOs(orders), nil
}

func (s *OrderApplicationService) ListOrdersByStatus(ctx context.Context, status string) ([]*OrderDTO, error) {
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	orders, err := s.repo.ListByStatus(ctx, st)
	if err != nil {
		return nil, err
	}
	return toOrderDTOs(orders), nil
}

// ListOrders 管理端查看全部订单，按创建时间倒序
func (s *OrderApplicationService) ListOrders(ctx context.Context) ([]*OrderDTO, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return toOrderDTOs(orders), nil
}

// EvaluateDiscount 折扣预览，不占用次数
func (s *OrderApplicationService) EvaluateDiscount(ctx context.Context, code string, subtotal decimal.Decimal) (port.DiscountQuote, error) {
	code = strings.TrimSpace(code)
	if code == "" || subtotal.IsNegative() {
		return port.DiscountQuote{}, fmt.Errorf("%w: code and a non-negative subtotal are required", domain.ErrInvalidInput)
	}
	return s.discounts.Evaluate(ctx, port.DiscountQuery{Code: code, Subtotal: subtotal})
}

func (s *OrderApplicationService) publish(ctx context.Context, e domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event", e.EventType()).Str("key", e.Key()).Msg("failed to publish event")
	}
}
