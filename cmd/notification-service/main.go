// cmd/notification-service/main.go
package main

import (
	"context"

	"orderpipeline/internal/pkg/bootstrap"
	"orderpipeline/internal/pkg/mq"
	"orderpipeline/internal/pkg/session"
	"orderpipeline/internal/service/notification"
)

const (
	serviceName     = "notification-service"
	servicePort     = 8082
	consumerGroupID = "notification-router-group"
)

// 通知路由服务：消费 notifications topic，按 Redis 会话
// 把通知转投到客户所在推送网关节点的专属 topic。
func main() {
	bootstrap.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()

	sessions := session.NewManager(cfg.Redis.Addr)
	reader := mq.NewReader(cfg.Kafka.Brokers, consumerGroupID, cfg.Kafka.Topics.Notifications)
	router := notification.NewRouter(reader, sessions, cfg.Kafka.Brokers)
	router.Start(context.Background())

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		Shutdown: func(ctx context.Context) {
			router.Stop(ctx)
			sessions.Close()
		},
	})
}
