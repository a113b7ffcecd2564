package messaging

import (
	"context"

	"github.com/oddslab/probpricing/internal/marketmonitor/domain"
	"github.com/oddslab/probpricing/pkg/mq"
)

// MarketUpdatesTopic 行情更新主题
const MarketUpdatesTopic = "market.updates"

// KafkaUpdatePublisher 行情更新的 Kafka 发布器
type KafkaUpdatePublisher struct {
	producer *mq.KafkaProducer
}

// NewKafkaUpdatePublisher 创建发布器
func NewKafkaUpdatePublisher(producer *mq.KafkaProducer) *KafkaUpdatePublisher {
	return &KafkaUpdatePublisher{producer: producer}
}

// PublishMarketUpdate 发布行情更新，以 instrumentId 作为分区键
func (p *KafkaUpdatePublisher) PublishMarketUpdate(ctx context.Context, update *domain.MarketUpdate) error {
	return p.producer.SendMessage(ctx, MarketUpdatesTopic, update.Data.InstrumentID, update)
}
