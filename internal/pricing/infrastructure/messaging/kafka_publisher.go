package messaging

import (
	"context"

	"github.com/oddslab/probpricing/internal/pricing/domain"
	"github.com/oddslab/probpricing/pkg/mq"
)

// OptionPricedTopic 报价事件主题
const OptionPricedTopic = "pricing.quotes"

// KafkaEventPublisher 报价事件的 Kafka 发布器
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
}

// NewKafkaEventPublisher 创建事件发布器
func NewKafkaEventPublisher(producer *mq.KafkaProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// PublishOptionPriced 发布报价事件
func (p *KafkaEventPublisher) PublishOptionPriced(ctx context.Context, event domain.OptionPricedEvent) error {
	return p.producer.SendMessage(ctx, OptionPricedTopic, event.InstrumentID, event)
}
