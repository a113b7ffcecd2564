// Package mysql 历史行情数据的 MySQL 仓储实现
package mysql

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/oddslab/probpricing/internal/volatility/domain"
)

// TickModel 历史价格数据表
type TickModel struct {
	ID           uint            `gorm:"primaryKey"`
	InstrumentID string          `gorm:"column:instrument_id;type:varchar(64);index:idx_instrument_ts;not null"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(32,18);not null"`
	Volume       decimal.Decimal `gorm:"column:volume;type:decimal(32,18);not null"`
	Timestamp    int64           `gorm:"column:timestamp;index:idx_instrument_ts;not null"`
	CreatedAt    time.Time
}

// TableName 指定表名
func (TickModel) TableName() string {
	return "market_ticks"
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建历史数据仓储实例
func NewHistoryRepository(db *gorm.DB) domain.HistoryRepository {
	return &historyRepository{db: db}
}

// GetHistoricalData 查询窗口期内的价格序列，按时间升序返回
func (r *historyRepository) GetHistoricalData(ctx context.Context, instrumentID string, windowDays int) ([]domain.PricePoint, error) {
	since := time.Now().AddDate(0, 0, -windowDays).UnixMilli()

	var models []TickModel
	err := r.db.WithContext(ctx).
		Where("instrument_id = ? AND timestamp >= ?", instrumentID, since).
		Order("timestamp asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	points := make([]domain.PricePoint, 0, len(models))
	for _, m := range models {
		points = append(points, domain.PricePoint{
			Price:     m.Price.InexactFloat64(),
			Volume:    m.Volume.InexactFloat64(),
			Timestamp: time.UnixMilli(m.Timestamp),
		})
	}
	return points, nil
}

// StoreDataPoint 写入一个数据点
func (r *historyRepository) StoreDataPoint(ctx context.Context, instrumentID string, point domain.PricePoint) error {
	model := TickModel{
		InstrumentID: instrumentID,
		Price:        decimal.NewFromFloat(point.Price),
		Volume:       decimal.NewFromFloat(point.Volume),
		Timestamp:    point.Timestamp.UnixMilli(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}
