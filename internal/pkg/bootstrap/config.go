// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置。来源优先级：环境变量 > 配置文件 > 默认值。
type Config struct {
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topics  Topics   `yaml:"topics"`
	} `yaml:"kafka"`

	Payment struct {
		GatewayURL string `yaml:"gatewayUrl"`
		TimeoutMs  int    `yaml:"timeoutMs"`
	} `yaml:"payment"`

	Retry struct {
		MaxAttempts  int `yaml:"maxAttempts"`  // 单次消费内的本地重试次数
		DelayMs      int `yaml:"delayMs"`      // 本地重试的固定间隔
		DLQThreshold int `yaml:"dlqThreshold"` // 订单级失败计数达到该值后进死信
	} `yaml:"retry"`

	MySQL struct {
		DSN string `yaml:"dsn"` // 为空时退化为内存存储
	} `yaml:"mysql"`

	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	Zookeeper struct {
		Addrs []string `yaml:"addrs"` // 为空时退化为进程内互斥锁
	} `yaml:"zookeeper"`

	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`

	Nacos struct {
		ServerAddrs string `yaml:"serverAddrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`
}

// Topics 列出流水线用到的全部逻辑通道。
// 流转 topic 建议 3 分区（按订单ID散列保序），死信 topic 1 分区即可。
type Topics struct {
	OrderPlaced       string `yaml:"orderPlaced"`
	OrderValidated    string `yaml:"orderValidated"`
	InventoryReserved string `yaml:"inventoryReserved"`
	PaymentProcessed  string `yaml:"paymentProcessed"`
	OrderConfirmed    string `yaml:"orderConfirmed"`
	OrderFailed       string `yaml:"orderFailed"`
	DLQOrders         string `yaml:"dlqOrders"`
	Notifications     string `yaml:"notifications"`
}

var (
	currentConfig *Config
	configOnce    sync.Once
)

// GetCurrentConfig 返回进程级配置，首次调用时加载。
func GetCurrentConfig() *Config {
	configOnce.Do(func() {
		cfg := defaultConfig()
		if path := os.Getenv("CONFIG_FILE"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				panic("failed to read config file " + path + ": " + err.Error())
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				panic("failed to parse config file " + path + ": " + err.Error())
			}
		}
		applyEnvOverrides(cfg)
		currentConfig = cfg
	})
	return currentConfig
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.Topics = Topics{
		OrderPlaced:       "order-placed",
		OrderValidated:    "order-validated",
		InventoryReserved: "inventory-reserved",
		PaymentProcessed:  "payment-processed",
		OrderConfirmed:    "order-confirmed",
		OrderFailed:       "order-failed",
		DLQOrders:         "dlq-orders",
		Notifications:     "notifications",
	}
	cfg.Payment.TimeoutMs = 5000
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.DelayMs = 1000
	cfg.Retry.DLQThreshold = 3
	cfg.Redis.Addr = "localhost:6379"
	cfg.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Nacos.ServerAddrs = "localhost:8848"
	cfg.Nacos.Group = "DEFAULT_GROUP"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ZOOKEEPER_ADDRS"); v != "" {
		cfg.Zookeeper.Addrs = strings.Split(v, ",")
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Jaeger.Endpoint = v
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		cfg.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("NACOS_NAMESPACE"); v != "" {
		cfg.Nacos.Namespace = v
	}
	if v := os.Getenv("NACOS_GROUP"); v != "" {
		cfg.Nacos.Group = v
	}
	if v := os.Getenv("PAYMENT_GATEWAY_URL"); v != "" {
		cfg.Payment.GatewayURL = v
	}
}
