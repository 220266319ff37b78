// cmd/order-service/main.go
package main

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"orderpipeline/internal/pkg/bootstrap"
	"orderpipeline/internal/pkg/logger"
	"orderpipeline/internal/pkg/mq"
	"orderpipeline/internal/pkg/zookeeper"
	"orderpipeline/internal/service/order/application"
	"orderpipeline/internal/service/order/domain"
	"orderpipeline/internal/service/order/domain/port"
	"orderpipeline/internal/service/order/infrastructure"
	"orderpipeline/internal/service/order/infrastructure/adapter"
	"orderpipeline/internal/service/order/interfaces"
)

const (
	serviceName = "order-service"
	servicePort = 8081
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
// 订单服务是单个部署单元：API + 四个流水线消费者 + 死信消费者都在这里组装。
func main() {
	bootstrap.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()
	ctx := context.Background()
	tracer := otel.Tracer(serviceName)

	// 1. 存储层：配置了 MySQL 就用 GORM，否则退化为内存实现（本地演练）
	orders, inventory := buildRepositories(cfg)

	// 2. 分布式锁：配置了 Zookeeper 就用 ZK 锁，否则用进程内互斥锁
	locker, zkConn := buildLocker(cfg)

	// 3. 事件生产者与通知生产者
	producer := infrastructure.NewKafkaEventProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
	notificationWriter := mq.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topics.Notifications)
	notifier := adapter.NewNotificationKafkaAdapter(notificationWriter)

	// 4. 支付网关：配置了真实网关地址则走 HTTP，否则用模拟实现
	gateway := buildPaymentGateway(cfg)

	// 5. 应用层
	appService := application.NewOrderApplicationService(orders, producer, tracer)
	failureHandler := application.NewFailureHandler(orders, producer, notifier, tracer, cfg.Retry.DLQThreshold)
	compensation := application.NewCompensationManager(inventory, locker, tracer)

	validateStage := application.NewValidateStage(orders, producer, tracer)
	reserveStage := application.NewReserveStage(inventory, locker, producer, tracer)
	paymentStage := application.NewPaymentStage(gateway, producer, tracer,
		time.Duration(cfg.Payment.TimeoutMs)*time.Millisecond)
	confirmStage := application.NewConfirmStage(orders, producer, notifier, tracer)

	// 6. 接口层：每个阶段一个消费者，输入 topic 是上一阶段的输出
	consumers := buildStageConsumers(cfg, failureHandler, compensation,
		validateStage, reserveStage, paymentStage, confirmStage)
	for _, c := range consumers {
		c.Start(ctx)
	}

	dltReader := mq.NewReader(cfg.Kafka.Brokers, "order-dlt-group", cfg.Kafka.Topics.DLQOrders)
	dltConsumer := interfaces.NewDltConsumerAdapter(dltReader)
	if err := dltConsumer.Start(ctx); err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("failed to start DLT consumer")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewOrderHandler(appService).RegisterRoutes(appCtx.Mux)
		},
		Shutdown: func(ctx context.Context) {
			// 每个消费者的 Stop 要等在途消息处理完，并行收敛
			var g errgroup.Group
			for _, c := range consumers {
				g.Go(func() error {
					c.Stop(ctx)
					return nil
				})
			}
			g.Wait()
			dltConsumer.Stop(ctx)
			producer.Close()
			notifier.Close()
			if zkConn != nil {
				zkConn.Close()
			}
		},
	})
}

func buildRepositories(cfg *bootstrap.Config) (domain.OrderRepository, domain.InventoryRepository) {
	log := logger.Ctx(context.Background())
	if cfg.MySQL.DSN == "" {
		log.Warn().Msg("MySQL DSN not configured, using in-memory repositories")
		memInventory := infrastructure.NewMemoryInventoryRepository()
		seedDemoInventory(memInventory)
		return infrastructure.NewMemoryOrderRepository(), memInventory
	}

	db, err := infrastructure.NewMySQL(cfg.MySQL.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MySQL")
	}
	return infrastructure.NewGormOrderRepository(db), infrastructure.NewGormInventoryRepository(db)
}

func buildLocker(cfg *bootstrap.Config) (port.ResourceLocker, *zookeeper.Conn) {
	log := logger.Ctx(context.Background())
	if len(cfg.Zookeeper.Addrs) == 0 {
		log.Warn().Msg("Zookeeper not configured, using in-process locker (single instance only)")
		return infrastructure.NewKeyedMutexLocker(), nil
	}

	conn, err := zookeeper.Connect(cfg.Zookeeper.Addrs, 5*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Zookeeper")
	}
	return infrastructure.NewZookeeperLocker(conn), conn
}

func buildPaymentGateway(cfg *bootstrap.Config) port.PaymentGateway {
	if cfg.Payment.GatewayURL != "" {
		return adapter.NewPaymentHTTPAdapter(cfg.Payment.GatewayURL)
	}
	logger.Ctx(context.Background()).Warn().Msg("Payment gateway URL not configured, using simulated gateway")
	return adapter.NewPaymentSimAdapter(0.9, time.Now().UnixNano())
}

// buildStageConsumers 组装四个流水线阶段的消费者。
// 支付阶段额外挂上补偿钩子：失败信号发出后释放已预占的库存。
func buildStageConsumers(
	cfg *bootstrap.Config,
	failureHandler *application.FailureHandler,
	compensation *application.CompensationManager,
	validateStage *application.ValidateStage,
	reserveStage *application.ReserveStage,
	paymentStage *application.PaymentStage,
	confirmStage *application.ConfirmStage,
) []*interfaces.StageConsumerAdapter {
	brokers := cfg.Kafka.Brokers
	topics := cfg.Kafka.Topics
	attempts := cfg.Retry.MaxAttempts
	delay := time.Duration(cfg.Retry.DelayMs) * time.Millisecond
	dlqWriter := mq.NewWriter(brokers, topics.DLQOrders)

	validate := interfaces.NewStageConsumerAdapter(
		mq.NewReader(brokers, "order-validation-group", topics.OrderPlaced),
		"validate", validateStage.Process, failureHandler, dlqWriter, attempts, delay)

	reserve := interfaces.NewStageConsumerAdapter(
		mq.NewReader(brokers, "inventory-reservation-group", topics.OrderValidated),
		"reserve", reserveStage.Process, failureHandler, dlqWriter, attempts, delay)

	payment := interfaces.NewStageConsumerAdapter(
		mq.NewReader(brokers, "payment-processing-group", topics.InventoryReserved),
		"payment", paymentStage.Process, failureHandler, dlqWriter, attempts, delay)
	payment.AfterFailure(func(ctx context.Context, event *domain.OrderEvent) {
		if event.Order != nil {
			compensation.Release(ctx, event.Order)
		}
	})

	confirm := interfaces.NewStageConsumerAdapter(
		mq.NewReader(brokers, "order-confirmation-group", topics.PaymentProcessed),
		"confirm", confirmStage.Process, failureHandler, dlqWriter, attempts, delay)

	return []*interfaces.StageConsumerAdapter{validate, reserve, payment, confirm}
}

func seedDemoInventory(repo *infrastructure.MemoryInventoryRepository) {
	repo.Seed("PROD-001", 100, 0)
	repo.Seed("PROD-002", 50, 0)
	repo.Seed("PROD-003", 10, 0)
}
