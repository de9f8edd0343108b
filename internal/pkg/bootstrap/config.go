// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"marketplace/internal/pkg/database"
	"marketplace/internal/pkg/logger"
)

// Config 是服务的完整配置快照，热更新时整体替换。
type Config struct {
	App       AppConfig       `yaml:"app"`
	Infra     InfraConfig     `yaml:"infra"`
	Inventory InventoryConfig `yaml:"inventory"`
	Cart      CartConfig      `yaml:"cart"`
	Log       LogConfig       `yaml:"log"`
}

type AppConfig struct {
	Name            string        `yaml:"name"`
	Port            int           `yaml:"port"`
	CheckoutTimeout time.Duration `yaml:"checkoutTimeout"`
	FeatureFlags    FeatureFlags  `yaml:"featureFlags"`
}

// FeatureFlags 只在启动时决定装配哪些组件（规则引擎、下单队列与消费者、推送 Hub、下单锁），
// 通过 Nacos 热更新不会新建或拆除组件。唯一的运行时效果：EnableAsyncCheckout 关闭后
// 新的下单请求改走同步流程；启动时未开启则热开启也只会返回 503，需要重启。
type FeatureFlags struct {
	EnableDiscountRules bool `yaml:"enableDiscountRules"`
	EnableAsyncCheckout bool `yaml:"enableAsyncCheckout"`
	EnablePushGateway   bool `yaml:"enablePushGateway"`
	EnableCheckoutLock  bool `yaml:"enableCheckoutLock"`
}

type InfraConfig struct {
	MySQL     database.MySQLConfig `yaml:"mysql"`
	Redis     RedisConfig          `yaml:"redis"`
	Kafka     KafkaConfig          `yaml:"kafka"`
	Jaeger    JaegerConfig         `yaml:"jaeger"`
	Zookeeper ZookeeperConfig      `yaml:"zookeeper"`
	Nacos     NacosConfig          `yaml:"nacos"`
}

type RedisConfig struct {
	Addrs    string `yaml:"addrs"`
	Password string `yaml:"password"`
}

type KafkaConfig struct {
	Brokers               []string `yaml:"brokers"`
	OrderEventsTopic      string   `yaml:"orderEventsTopic"`
	CheckoutRequestsTopic string   `yaml:"checkoutRequestsTopic"`
	ConsumerGroup         string   `yaml:"consumerGroup"`
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sampleRatio"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
	DataID      string `yaml:"dataId"`
}

// InventoryConfig.Backend 取值 mysql | redis | memory
type InventoryConfig struct {
	Backend string `yaml:"backend"`
}

// CartConfig.Backend 取值 redis | http。
// http 模式下优先通过 Nacos 按 ServiceName 发现实例，否则使用 ServiceURL
type CartConfig struct {
	Backend     string `yaml:"backend"`
	ServiceURL  string `yaml:"serviceURL"`
	ServiceName string `yaml:"serviceName"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回当前生效的配置快照，未加载时返回默认配置。
func GetCurrentConfig() *Config {
	if c := currentConfig.Load(); c != nil {
		return c
	}
	return defaultConfig()
}

func setCurrentConfig(c *Config) {
	currentConfig.Store(c)
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:            "order-service",
			Port:            8080,
			CheckoutTimeout: 10 * time.Second,
		},
		Infra: InfraConfig{
			MySQL:  database.MySQLConfig{Addr: "localhost:3306", User: "root", Database: "marketplace"},
			Redis:  RedisConfig{Addrs: "localhost:6379"},
			Kafka:  KafkaConfig{OrderEventsTopic: "order-events", CheckoutRequestsTopic: "order-checkout-requests", ConsumerGroup: "order-service"},
			Jaeger: JaegerConfig{SampleRatio: 1},
			Zookeeper: ZookeeperConfig{
				SessionTimeout: 5 * time.Second,
			},
			Nacos: NacosConfig{Group: "DEFAULT_GROUP", DataID: "order-service.yaml"},
		},
		Inventory: InventoryConfig{Backend: "mysql"},
		Cart:      CartConfig{Backend: "redis"},
		Log:       LogConfig{Level: "info"},
	}
}

// ParseConfig 在默认配置之上解析 YAML。
func ParseConfig(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DiscoversCart 表示购物车服务地址由 Nacos 服务发现提供
func (c *Config) DiscoversCart() bool {
	return c.Cart.Backend == "http" && c.Cart.ServiceName != "" && c.Infra.Nacos.Enabled
}

func (c *Config) validate() error {
	switch c.Inventory.Backend {
	case "mysql", "redis", "memory":
	default:
		return fmt.Errorf("unknown inventory backend %q", c.Inventory.Backend)
	}
	switch c.Cart.Backend {
	case "redis", "http":
	default:
		return fmt.Errorf("unknown cart backend %q", c.Cart.Backend)
	}
	if c.Cart.Backend == "http" && c.Cart.ServiceURL == "" && !c.DiscoversCart() {
		return fmt.Errorf("cart.serviceURL or cart.serviceName with nacos enabled is required for the http cart backend")
	}
	return nil
}

// LoadConfig 读取 YAML 文件（文件不存在时使用默认值），再用环境变量覆盖，然后设为当前配置。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	setCurrentConfig(cfg)
	return cfg, nil
}

// applyEnv 用环境变量覆盖部署相关的配置项
func applyEnv(c *Config) {
	c.App.Port = getEnvInt("PORT", c.App.Port)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Infra.MySQL.Addr = getEnv("MYSQL_ADDR", c.Infra.MySQL.Addr)
	c.Infra.MySQL.User = getEnv("MYSQL_USER", c.Infra.MySQL.User)
	c.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", c.Infra.MySQL.Password)
	c.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", c.Infra.MySQL.Database)
	c.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", c.Infra.Redis.Addrs)
	c.Infra.Redis.Password = getEnv("REDIS_PASSWORD", c.Infra.Redis.Password)
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getEnv("ZOOKEEPER_SERVERS", ""); v != "" {
		c.Infra.Zookeeper.Servers = strings.Split(v, ",")
	}
	c.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", c.Infra.Jaeger.Endpoint)
	c.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", c.Infra.Nacos.ServerAddrs)
	c.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Infra.Nacos.Namespace)
	c.Infra.Nacos.Group = getEnv("NACOS_GROUP", c.Infra.Nacos.Group)
	c.Inventory.Backend = getEnv("INVENTORY_BACKEND", c.Inventory.Backend)
	c.Cart.Backend = getEnv("CART_BACKEND", c.Cart.Backend)
	c.Cart.ServiceURL = getEnv("CART_SERVICE_URL", c.Cart.ServiceURL)
	c.Cart.ServiceName = getEnv("CART_SERVICE_NAME", c.Cart.ServiceName)
}

// RemoteConfigSource 是远程配置中心（Nacos）的抽象
type RemoteConfigSource interface {
	GetConfig(dataID string) (string, error)
	ListenConfig(dataID string, onChange func(data string)) error
}

// WatchRemoteConfig 拉取远程配置替换当前配置，并监听后续变更。
// 远程配置解析失败时保留旧配置。
func WatchRemoteConfig(src RemoteConfigSource, dataID string) error {
	content, err := src.GetConfig(dataID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) != "" {
		if err := applyRemote(content); err != nil {
			return err
		}
	}
	return src.ListenConfig(dataID, func(data string) {
		if err := applyRemote(data); err != nil {
			logger.Ctx(context.Background()).Error().Err(err).Str("dataId", dataID).Msg("ignored invalid remote config")
			return
		}
		logger.Ctx(context.Background()).Info().Str("dataId", dataID).Msg("🔄 remote config reloaded")
	})
}

func applyRemote(data string) error {
	cfg, err := ParseConfig([]byte(data))
	if err != nil {
		return err
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return err
	}
	setCurrentConfig(cfg)
	return nil
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
