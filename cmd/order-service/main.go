// cmd/order-service/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"marketplace/internal/pkg/bootstrap"
	"marketplace/internal/pkg/database"
	"marketplace/internal/pkg/httpclient"
	"marketplace/internal/pkg/lock"
	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/middleware"
	"marketplace/internal/pkg/mq"
	"marketplace/internal/pkg/nacos"
	"marketplace/internal/pkg/push"
	"marketplace/internal/pkg/redis"
	inventory "marketplace/internal/service/inventory/domain"
	invinfra "marketplace/internal/service/inventory/infrastructure"
	"marketplace/internal/service/order/application"
	"marketplace/internal/service/order/domain/port"
	"marketplace/internal/service/order/infrastructure"
	"marketplace/internal/service/order/infrastructure/adapter"
	orderhttp "marketplace/internal/service/order/interfaces"
	promoapp "marketplace/internal/service/promotion/application"
	promotion "marketplace/internal/service/promotion/domain"
	promoinfra "marketplace/internal/service/promotion/infrastructure"
	"marketplace/internal/service/promotion/infrastructure/rule"
	promohttp "marketplace/internal/service/promotion/interfaces"
	"marketplace/internal/zookeeper"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	configPath := flag.String("config", getEnv("CONFIG_PATH", "configs/order-service.yaml"), "path to the YAML config")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Log.Level, serviceName)

	app, err := build(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to assemble service")
	}
	if err := bootstrap.StartService(*app); err != nil {
		log.Fatal().Err(err).Msg("service stopped with error")
	}
}

func build(cfg *bootstrap.Config) (*bootstrap.AppInfo, error) {
	ctx := context.Background()
	tracer := otel.Tracer(serviceName)
	app := &bootstrap.AppInfo{ServiceName: serviceName, Port: cfg.App.Port}

	// 1. 数据库
	db, err := database.OpenMySQL(cfg.Infra.MySQL)
	if err != nil {
		return nil, err
	}
	app.Closers = append(app.Closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	// 本地环境一并建表；products / users 在生产中由目录服务和账号服务维护
	models := append(infrastructure.Models(), &promoinfra.DiscountModel{}, &invinfra.ProductModel{}, &adapter.UserModel{})
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}

	// 2. Redis（库存或购物车需要时才连接）
	var redisClient *redis.Client
	if cfg.Inventory.Backend == "redis" || cfg.Cart.Backend == "redis" {
		redisClient, err = redis.NewClient(ctx, cfg.Infra.Redis.Addrs, cfg.Infra.Redis.Password)
		if err != nil {
			return nil, err
		}
		app.Closers = append(app.Closers, func(context.Context) error { return redisClient.Close() })
	}

	// 3. 库存台账
	ledger, err := buildLedger(ctx, cfg, db, redisClient)
	if err != nil {
		return nil, err
	}

	// 4. 折扣服务
	var rules promotion.RuleEngine
	if cfg.App.FeatureFlags.EnableDiscountRules {
		engine, err := rule.NewCELRuleEngine()
		if err != nil {
			return nil, err
		}
		rules = engine
	}
	discounts := promoapp.NewDiscountService(promoinfra.NewGormDiscountRepository(db), rules, tracer)
	discounts.SetCreatorDirectory(promoinfra.NewGormCreatorDirectory(db))

	// 5. 购物车
	var cart port.CartStore
	switch cfg.Cart.Backend {
	case "http":
		if cfg.DiscoversCart() {
			nc := cfg.Infra.Nacos
			naming, err := nacos.NewNacosClient(nc.ServerAddrs, nc.Namespace, nc.Group)
			if err != nil {
				return nil, err
			}
			app.Closers = append(app.Closers, func(context.Context) error { naming.Close(); return nil })
			cart = adapter.NewDiscoveredCartHTTPAdapter(httpclient.NewClient(tracer), naming, cfg.Cart.ServiceName)
		} else {
			cart = adapter.NewCartHTTPAdapter(httpclient.NewClient(tracer), cfg.Cart.ServiceURL)
		}
	default:
		cart = adapter.NewCartRedisAdapter(redisClient.GetClient())
	}

	// 6. 事件发布：Kafka + Websocket 推送
	var publishers []port.EventPublisher
	kafkaCfg := cfg.Infra.Kafka
	if len(kafkaCfg.Brokers) > 0 {
		writer := mq.NewKafkaWriter(kafkaCfg.Brokers, kafkaCfg.OrderEventsTopic)
		app.Closers = append(app.Closers, func(context.Context) error { return writer.Close() })
		publishers = append(publishers, adapter.NewEventKafkaAdapter(writer))
	}
	var hub *push.Hub
	if cfg.App.FeatureFlags.EnablePushGateway {
		hub = push.NewHub()
		app.Runners = append(app.Runners, hub.Run)
		publishers = append(publishers, adapter.NewPushAdapter(hub))
	}

	svc := application.NewOrderApplicationService(
		infrastructure.NewGormOrderRepository(db), tracer, cfg.App.CheckoutTimeout,
		adapter.NewCustomerGormAdapter(db),
		adapter.NewInventoryLedgerAdapter(ledger),
		adapter.NewDiscountAdapter(discounts),
		cart,
		adapter.NewFanoutPublisher(publishers...),
	)

	// 7. 同一客户下单互斥：有 ZooKeeper 时跨实例，否则进程内
	if cfg.App.FeatureFlags.EnableCheckoutLock {
		if zkServers := cfg.Infra.Zookeeper.Servers; len(zkServers) > 0 {
			conn, err := zookeeper.Connect(zkServers, cfg.Infra.Zookeeper.SessionTimeout)
			if err != nil {
				return nil, err
			}
			app.Closers = append(app.Closers, func(context.Context) error { conn.Close(); return nil })
			svc.SetLocker(zookeeper.NewLocker(conn))
		} else {
			svc.SetLocker(lock.NewKeyedMutex())
		}
	}

	// 8. 异步下单：生产者 + 消费者 + 死信
	if cfg.App.FeatureFlags.EnableAsyncCheckout && len(kafkaCfg.Brokers) > 0 {
		queueWriter := mq.NewKafkaWriter(kafkaCfg.Brokers, kafkaCfg.CheckoutRequestsTopic)
		dltWriter := mq.NewKafkaWriter(kafkaCfg.Brokers, kafkaCfg.CheckoutRequestsTopic+".dlt")
		reader := mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.CheckoutRequestsTopic, kafkaCfg.ConsumerGroup)
		app.Closers = append(app.Closers,
			func(context.Context) error { return queueWriter.Close() },
			func(context.Context) error { return dltWriter.Close() },
			func(context.Context) error { return reader.Close() },
		)
		svc.SetCheckoutQueue(adapter.NewCheckoutKafkaAdapter(queueWriter))
		app.Runners = append(app.Runners, orderhttp.NewCheckoutConsumer(reader, svc, dltWriter).Run)
	}

	app.Handler = newRouter(svc, discounts, hub)
	return app, nil
}

func buildLedger(ctx context.Context, cfg *bootstrap.Config, db *gorm.DB, redisClient *redis.Client) (inventory.Ledger, error) {
	gormLedger := invinfra.NewGormLedger(db)
	switch cfg.Inventory.Backend {
	case "redis":
		l, err := invinfra.NewRedisLedger(redisClient)
		if err != nil {
			return nil, err
		}
		n, err := l.Warm(ctx, gormLedger)
		if err != nil {
			return nil, err
		}
		logger.Ctx(ctx).Info().Int("products", n).Msg("inventory warmed into redis")
		return l, nil
	case "memory":
		products, err := gormLedger.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		return invinfra.NewMemoryLedger(products...), nil
	default:
		return gormLedger, nil
	}
}

func newRouter(svc *application.OrderApplicationService, discounts *promoapp.DiscountService, hub *push.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.HeaderUserID, middleware.HeaderUserRole, "traceparent"},
		MaxAge:         300,
	}))
	r.Use(middleware.Identify)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())

	promohttp.NewDiscountHandler(discounts).RegisterRoutes(r)
	orderhttp.NewOrderHandler(svc, hub).RegisterRoutes(r)
	return r
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
