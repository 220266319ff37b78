// internal/pkg/mq/headers.go
package mq

import "github.com/segmentio/kafka-go"

// 死信消息携带的诊断头，记录消息的来源和失败原因。
const (
	HeaderOriginalTopic     = "x-original-topic"
	HeaderOriginalPartition = "x-original-partition"
	HeaderOriginalOffset    = "x-original-offset"
	HeaderExceptionType     = "x-exception-type"
	HeaderExceptionMessage  = "x-exception-message"
)

// KafkaHeaderCarrier 让 kafka 消息头适配 OpenTelemetry 的 TextMapCarrier 接口。
type KafkaHeaderCarrier []kafka.Header

func (c *KafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *KafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *KafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, h := range *c {
		keys = append(keys, h.Key)
	}
	return keys
}
