package adapter

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"marketplace/internal/pkg/httpclient"
)

const cartClearPath = "/api/cart/clear"

// ServiceDiscoverer 返回服务的一个健康实例，由 nacos.Client 实现
type ServiceDiscoverer interface {
	DiscoverServiceInstance(serviceName string) (string, int, error)
}

// CartHTTPAdapter 实现了 port.CartStore 接口，调用独立部署的购物车服务。
type CartHTTPAdapter struct {
	client   *httpclient.Client
	endpoint func(ctx context.Context) (string, error)
}

// NewCartHTTPAdapter 使用固定地址
func NewCartHTTPAdapter(client *httpclient.Client, baseURL string) *CartHTTPAdapter {
	baseURL = strings.TrimRight(baseURL, "/")
	return &CartHTTPAdapter{client: client, endpoint: func(context.Context) (string, error) { return baseURL, nil }}
}

// NewDiscoveredCartHTTPAdapter 每次调用前从注册中心挑选一个健康实例
func NewDiscoveredCartHTTPAdapter(client *httpclient.Client, discoverer ServiceDiscoverer, serviceName string) *CartHTTPAdapter {
	return &CartHTTPAdapter{client: client, endpoint: func(context.Context) (string, error) {
		ip, port, err := discoverer.DiscoverServiceInstance(serviceName)
		if err != nil {
			return "", errors.Wrap(err, "resolve cart service")
		}
		return "http://" + net.JoinHostPort(ip, strconv.Itoa(port)), nil
	}}
}

func (a *CartHTTPAdapter) Clear(ctx context.Context, customerID int64) error {
	baseURL, err := a.endpoint(ctx)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("customerId", strconv.FormatInt(customerID, 10))
	return a.client.Do(ctx, http.MethodDelete, baseURL+cartClearPath, params)
}
