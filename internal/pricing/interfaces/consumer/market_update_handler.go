// Package consumer 消费行情更新事件并驱动定价侧的响应
package consumer

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	monitordomain "github.com/oddslab/probpricing/internal/marketmonitor/domain"
	"github.com/oddslab/probpricing/internal/pricing/application"
	"github.com/oddslab/probpricing/pkg/logger"
	"github.com/oddslab/probpricing/pkg/mq"
)

// MarketUpdateConsumer 行情更新消费者
type MarketUpdateConsumer struct {
	consumer *mq.KafkaConsumer
	pricing  *application.PricingService
}

// NewMarketUpdateConsumer 创建消费者
func NewMarketUpdateConsumer(consumer *mq.KafkaConsumer, pricing *application.PricingService) *MarketUpdateConsumer {
	return &MarketUpdateConsumer{
		consumer: consumer,
		pricing:  pricing,
	}
}

// Run 启动消费循环，ctx 取消时退出
func (c *MarketUpdateConsumer) Run(ctx context.Context) error {
	return c.consumer.Run(ctx, c.handle)
}

func (c *MarketUpdateConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var update monitordomain.MarketUpdate
	if err := json.Unmarshal(msg.Value, &update); err != nil {
		logger.Warn(ctx, "failed to decode market update",
			"offset", msg.Offset,
			"error", err)
		return nil
	}

	c.pricing.OnMarketUpdate(ctx, update)
	return nil
}

// Close 关闭消费者
func (c *MarketUpdateConsumer) Close() error {
	return c.consumer.Close()
}
