package adapter

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"marketplace/internal/pkg/database/dbtest"
	"marketplace/internal/pkg/httpclient"
	"marketplace/internal/service/order/domain"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestEventKafkaAdapter_Publish(t *testing.T) {
	w := &fakeWriter{}
	a := NewEventKafkaAdapter(w)
	err := a.Publish(context.Background(), domain.OrderPlaced{
		OrderID: "o-1", CustomerID: 3, TotalAmount: decimal.NewFromInt(700000), PlacedAt: time.Unix(0, 0).UTC(),
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "o-1", string(w.msgs[0].Key))
	assert.Equal(t, domain.EventOrderPlaced, header(w.msgs[0], HeaderEventType))

	var got domain.OrderPlaced
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, int64(3), got.CustomerID)
	assert.True(t, decimal.NewFromInt(700000).Equal(got.TotalAmount))
}

func TestCheckoutKafkaAdapter_Enqueue(t *testing.T) {
	w := &fakeWriter{}
	a := NewCheckoutKafkaAdapter(w)
	cmd := &domain.CheckoutRequested{EventID: "e-1", CustomerID: 42, Items: []domain.LineRequest{{ProductID: 1, Quantity: 2}}}
	require.NoError(t, a.Enqueue(context.Background(), cmd))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))

	var got domain.CheckoutRequested
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, cmd.Items, got.Items)
}

type stubPublisher struct {
	calls int
	err   error
}

func (p *stubPublisher) Publish(context.Context, domain.Event) error {
	p.calls++
	return p.err
}

func TestFanoutPublisher_CallsEveryPublisher(t *testing.T) {
	boom := errors.New("boom")
	a, b := &stubPublisher{err: boom}, &stubPublisher{}
	err := NewFanoutPublisher(a, b).Publish(context.Background(), domain.OrderCreationFailed{EventID: "e"})
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestCartRedisAdapter_Clear(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	mr.HSet(CartKey(5), "1", "2")
	mr.HSet(CartKey(6), "1", "1")

	require.NoError(t, NewCartRedisAdapter(rdb).Clear(context.Background(), 5))
	assert.False(t, mr.Exists("cart:5"))
	assert.True(t, mr.Exists("cart:6"))

	// 购物车不存在也不算失败
	assert.NoError(t, NewCartRedisAdapter(rdb).Clear(context.Background(), 99))
}

func TestCartHTTPAdapter_Clear(t *testing.T) {
	var gotMethod, gotPath, gotCustomer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotCustomer = r.Method, r.URL.Path, r.URL.Query().Get("customerId")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewCartHTTPAdapter(httpclient.NewClient(otel.Tracer("test")), srv.URL+"/")
	require.NoError(t, a.Clear(context.Background(), 12))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, cartClearPath, gotPath)
	assert.Equal(t, "12", gotCustomer)
}

func TestCartHTTPAdapter_ClearFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewCartHTTPAdapter(httpclient.NewClient(otel.Tracer("test")), srv.URL)
	assert.Error(t, a.Clear(context.Background(), 12))
}

type stubDiscoverer struct {
	addr  string
	err   error
	asked []string
}

func (d *stubDiscoverer) DiscoverServiceInstance(serviceName string) (string, int, error) {
	d.asked = append(d.asked, serviceName)
	if d.err != nil {
		return "", 0, d.err
	}
	host, port, err := net.SplitHostPort(d.addr)
	if err != nil {
		return "", 0, err
	}
	p, err := strconv.Atoi(port)
	return host, p, err
}

func TestCartHTTPAdapter_ClearViaDiscovery(t *testing.T) {
	var gotPath, gotCustomer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotCustomer = r.URL.Path, r.URL.Query().Get("customerId")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := &stubDiscoverer{addr: strings.TrimPrefix(srv.URL, "http://")}
	a := NewDiscoveredCartHTTPAdapter(httpclient.NewClient(otel.Tracer("test")), d, "cart-service")
	require.NoError(t, a.Clear(context.Background(), 7))
	assert.Equal(t, cartClearPath, gotPath)
	assert.Equal(t, "7", gotCustomer)
	assert.Equal(t, []string{"cart-service"}, d.asked)

	d.err = errors.New("no healthy instance")
	err := a.Clear(context.Background(), 7)
	assert.ErrorContains(t, err, "resolve cart service")
}

func TestCustomerGormAdapter_GetCustomer(t *testing.T) {
	db := dbtest.Open(t, &UserModel{})
	require.NoError(t, db.Create(&UserModel{ID: 1, Username: "alice", Email: "a@example.com", PhoneNumber: "090", Address: "road 1"}).Error)

	a := NewCustomerGormAdapter(db)
	c, err := a.GetCustomer(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &domain.Customer{ID: 1, Name: "alice", Email: "a@example.com", Phone: "090", Address: "road 1"}, c)

	_, err = a.GetCustomer(context.Background(), 2)
	assert.True(t, errors.Is(err, domain.ErrCustomerNotFound))
}
