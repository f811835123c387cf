// Package messaging 领域事件的 Kafka 发布适配
package messaging

import (
	"context"
	"time"

	"github.com/wyfcoding/optionstrading/pkg/mq"
	"github.com/wyfcoding/optionstrading/pkg/utils"
)

// KafkaEventPublisher 把领域事件发到 Kafka，broker 抖动时带退避重试
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
}

// NewKafkaEventPublisher 创建事件发布器
func NewKafkaEventPublisher(producer *mq.KafkaProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// Publish 发布事件
func (p *KafkaEventPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	return utils.RetryWithBackoff(3, 100*time.Millisecond, time.Second, func() error {
		return p.producer.SendMessage(ctx, topic, key, event)
	})
}
