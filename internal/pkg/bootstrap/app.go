// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/pkg/nacos"
	"marketplace/internal/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

// Runner 是随服务一起启动的后台任务（Kafka 消费者、推送 Hub 等），ctx 结束时应返回。
type Runner func(ctx context.Context) error

// AppInfo 包含了启动一个服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	Handler     http.Handler
	Runners     []Runner
	// Closers 在 HTTP 服务和后台任务都停止之后按注册的逆序执行
	Closers []func(ctx context.Context) error
}

// StartService 封装了服务的通用启动和优雅关停逻辑，阻塞直到收到退出信号或任一任务失败。
func StartService(info AppInfo) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.Ctx(ctx)
	cfg := GetCurrentConfig()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		return err
	}

	// 2. 服务注册（可选）
	var deregister func()
	if cfg.Infra.Nacos.Enabled {
		d, err := registerToNacos(info, cfg.Infra.Nacos)
		if err != nil {
			return err
		}
		deregister = d
	}

	// 3. HTTP Server + 后台任务
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           info.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, run := range info.Runners {
		run := run
		g.Go(func() error { return run(gctx) })
	}

	// 4. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if deregister != nil {
			deregister()
		}
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(info.Closers) - 1; i >= 0; i-- {
		if err := info.Closers[i](shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error while closing resource")
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}

	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return runErr
}

func registerToNacos(info AppInfo, nc NacosConfig) (func(), error) {
	client, err := nacos.NewNacosClient(nc.ServerAddrs, nc.Namespace, nc.Group)
	if err != nil {
		return nil, err
	}
	ip, err := GetOutboundIP()
	if err != nil {
		return nil, err
	}
	if err := client.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		return nil, err
	}
	if nc.DataID != "" {
		if err := WatchRemoteConfig(client, nc.DataID); err != nil {
			logger.Ctx(context.Background()).Warn().Err(err).Msg("remote config unavailable, keeping local config")
		}
	}
	return func() {
		if err := client.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.Ctx(context.Background()).Error().Err(err).Msg("error deregistering from nacos")
		}
		client.Close()
	}, nil
}

// GetOutboundIP 返回本机对外通信使用的 IP，UDP Dial 不会真正发包。
func GetOutboundIP() (string, error) {
	if ip := os.Getenv("POD_IP"); ip != "" {
		return ip, nil
	}
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
