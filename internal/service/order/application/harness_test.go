package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"marketplace/internal/pkg/database/dbtest"
	inventory "marketplace/internal/service/inventory/domain"
	invinfra "marketplace/internal/service/inventory/infrastructure"
	"marketplace/internal/service/order/domain"
	"marketplace/internal/service/order/infrastructure"
	"marketplace/internal/service/order/infrastructure/adapter"
	promotion "marketplace/internal/service/promotion/application"
	promoinfra "marketplace/internal/service/promotion/infrastructure"
	"marketplace/internal/service/promotion/infrastructure/rule"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	productA int64 = 1
	productB int64 = 2
	alice    int64 = 100
	bob      int64 = 101
	admin    int64 = 1
)

type recordingCart struct {
	mu      sync.Mutex
	cleared []int64
	err     error
}

func (c *recordingCart) Clear(_ context.Context, customerID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, customerID)
	return c.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t string) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// failingRepo 让订单持久化失败，用于验证补偿
type failingRepo struct {
	domain.OrderRepository
}

func (failingRepo) Create(context.Context, *domain.Order) error {
	return fmt.Errorf("disk full")
}

type harness struct {
	db        *gorm.DB
	svc       *OrderApplicationService
	repo      domain.OrderRepository
	ledger    *invinfra.GormLedger
	discounts *promotion.DiscountService
	cart      *recordingCart
	events    *recordingPublisher
	tick      time.Duration
	clockMu   sync.Mutex
}

func newHarness(t *testing.T) *harness {
	models := append(infrastructure.Models(), &invinfra.ProductModel{}, &promoinfra.DiscountModel{}, &adapter.UserModel{})
	db := dbtest.Open(t, models...)

	engine, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	discounts := promotion.NewDiscountService(promoinfra.NewGormDiscountRepository(db), engine, otel.Tracer("test"))
	discounts.SetClock(func() time.Time { return fixedNow })

	h := &harness{
		db:        db,
		repo:      infrastructure.NewGormOrderRepository(db),
		ledger:    invinfra.NewGormLedger(db),
		discounts: discounts,
		cart:      &recordingCart{},
		events:    &recordingPublisher{},
	}
	h.svc = h.newService(h.repo)

	ctx := context.Background()
	require.NoError(t, db.Create(&[]adapter.UserModel{
		{ID: alice, Username: "alice", Email: "alice@example.com", PhoneNumber: "0901", Address: "1 Main St"},
		{ID: bob, Username: "bob", Email: "bob@example.com", Address: "2 Side St"},
	}).Error)
	h.seedProduct(t, productA, "Product A", 500000, 10)
	h.seedProduct(t, productB, "Product B", 100000, 5)
	_, err = discounts.Create(ctx, admin, &promotion.DiscountRequest{
		Code:          "SAVE10",
		Name:          "10% off",
		DiscountType:  "PERCENTAGE",
		DiscountValue: decimal.NewFromInt(10),
		MinOrderValue: decPtr(200000),
	})
	require.NoError(t, err)
	return h
}

func (h *harness) newService(repo domain.OrderRepository) *OrderApplicationService {
	svc := NewOrderApplicationService(repo, otel.Tracer("test"), 5*time.Second,
		adapter.NewCustomerGormAdapter(h.db),
		adapter.NewInventoryLedgerAdapter(h.ledger),
		adapter.NewDiscountAdapter(h.discounts),
		h.cart, h.events)
	// 每次取时间都前进一秒，保证列表按创建时间排序稳定
	svc.SetClock(func() time.Time {
		h.clockMu.Lock()
		defer h.clockMu.Unlock()
		h.tick += time.Second
		return fixedNow.Add(h.tick)
	})
	return svc
}

func (h *harness) seedProduct(t *testing.T, id int64, name string, price int64, stock int) {
	require.NoError(t, h.ledger.SaveProduct(context.Background(), &inventory.Product{
		ID: id, Name: name, Price: decimal.NewFromInt(price), Stock: stock,
		Status: inventory.ProductActive, SellerID: 50,
	}))
}

func (h *harness) stock(t *testing.T, id int64) int {
	p, err := h.ledger.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (h *harness) usedCount(t *testing.T, code string) int {
	var m promoinfra.DiscountModel
	require.NoError(t, h.db.Where("code = ?", code).First(&m).Error)
	return m.UsedCount
}

func (h *harness) orderCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, h.db.Model(&infrastructure.OrderModel{}).Count(&n).Error)
	return n
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func intPtr(v int) *int { return &v }

func lines(pairs ...int64) []LineItem {
	var out []LineItem
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, LineItem{ProductID: pairs[i], Quantity: int(pairs[i+1])})
	}
	return out
}
