// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/pkg/nacos"
	"orderpipeline/internal/pkg/tracing"
)

type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// AppInfo 包含了启动一个服务所需的全部信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx)       // 注册服务自己的 HTTP 路由
	Shutdown         func(ctx context.Context) // 可选：关停时清理后台组件（消费者、生产者等）
}

// Init 初始化全局 Logger 并加载配置，main 中最先调用。
func Init(serviceName string) {
	logger.Init(serviceName)
	GetCurrentConfig()
}

// StartService 封装了所有服务的通用启动和优雅关停逻辑：
// Tracer → Nacos 注册 → HTTP Server → 等待信号 → 逆序清理。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	log := logger.Ctx(context.Background())

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	namingClient, err := nacos.NewClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize nacos client")
	}

	ip, err := nacos.GetOutboundIP()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get outbound IP address")
	}

	if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to register service with nacos")
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		log.Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msgf("Shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 清理顺序：先摘流量，再停业务组件，最后停基础设施
	if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
		log.Error().Err(err).Msg("Error deregistering from Nacos")
	}

	if info.Shutdown != nil {
		info.Shutdown(ctx)
	}

	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	}

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	}

	log.Info().Msgf("✅ Service %s gracefully shut down.", info.ServiceName)
}
