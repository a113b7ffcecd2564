package messaging

import (
	"context"

	"github.com/oddslab/probpricing/internal/amm/domain"
	"github.com/oddslab/probpricing/pkg/mq"
)

const (
	tradeTopic     = "amm.trades"
	liquidityTopic = "amm.liquidity"
)

// KafkaEventPublisher 池事件的 Kafka 发布器
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
}

// NewKafkaEventPublisher 创建事件发布器
func NewKafkaEventPublisher(producer *mq.KafkaProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// PublishTradeExecuted 发布成交事件，以 instrumentId 作为分区键保证同池有序
func (p *KafkaEventPublisher) PublishTradeExecuted(ctx context.Context, event *domain.TradeExecutedEvent) error {
	return p.producer.SendMessage(ctx, tradeTopic, event.InstrumentID, event)
}

// PublishLiquidityChanged 发布流动性变更事件
func (p *KafkaEventPublisher) PublishLiquidityChanged(ctx context.Context, event *domain.LiquidityChangedEvent) error {
	return p.producer.SendMessage(ctx, liquidityTopic, event.InstrumentID, event)
}
