// Package archive persists terminal orders and applied fills to PostgreSQL
// for reporting. It sits behind the event bus so a slow or unavailable
// database can never stall the apply path; the log remains the source of
// truth.
package archive

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"main/internal/schema"
)

// OrderRow is the archived form of a terminal order.
type OrderRow struct {
	ID              uint            `gorm:"primaryKey"`
	ClientOrderID   string          `gorm:"uniqueIndex;size:64"`
	ExchangeOrderID string          `gorm:"size:64"`
	Symbol          string          `gorm:"index;size:32"`
	Side            string          `gorm:"size:8"`
	Type            string          `gorm:"size:8"`
	Status          string          `gorm:"size:16"`
	StrategyID      string          `gorm:"index;size:64"`
	Price           decimal.Decimal `gorm:"type:decimal(32,16)"`
	Quantity        decimal.Decimal `gorm:"type:decimal(32,16)"`
	FilledQuantity  decimal.Decimal `gorm:"type:decimal(32,16)"`
	AvgFillPrice    decimal.Decimal `gorm:"type:decimal(32,16)"`
	CreatedAtNs     int64
	UpdatedAtNs     int64
	ArchivedAt      time.Time
}

// FillRow is one applied execution.
type FillRow struct {
	ID            uint            `gorm:"primaryKey"`
	ExecutionID   string          `gorm:"uniqueIndex;size:64"`
	ClientOrderID string          `gorm:"index;size:64"`
	Symbol        string          `gorm:"index;size:32"`
	Side          string          `gorm:"size:8"`
	FillPrice     decimal.Decimal `gorm:"type:decimal(32,16)"`
	FillQty       decimal.Decimal `gorm:"type:decimal(32,16)"`
	Fee           decimal.Decimal `gorm:"type:decimal(32,16)"`
	TimestampNs   int64
	ArchivedAt    time.Time
}

// Archive writes order history to the database.
type Archive struct {
	db *gorm.DB
}

// New migrates the archive schema and returns a ready repository.
func New(db *gorm.DB) (*Archive, error) {
	if err := db.AutoMigrate(&OrderRow{}, &FillRow{}); err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

// SaveOrder upserts an order by client order ID. Called on terminal status so
// the archive holds the final state of every closed order.
func (a *Archive) SaveOrder(order schema.Order) error {
	row := OrderRow{
		ClientOrderID:   order.ClientOrderID,
		ExchangeOrderID: order.ExchangeOrderID,
		Symbol:          order.Symbol,
		Side:            order.Side.String(),
		Type:            order.Type.String(),
		Status:          order.Status.String(),
		StrategyID:      order.StrategyID,
		Price:           order.Price,
		Quantity:        order.Quantity,
		FilledQuantity:  order.FilledQuantity,
		AvgFillPrice:    order.AvgFillPrice,
		CreatedAtNs:     order.CreatedAtNs,
		UpdatedAtNs:     order.UpdatedAtNs,
		ArchivedAt:      time.Now().UTC(),
	}

	var existing OrderRow
	err := a.db.Where("client_order_id = ?", order.ClientOrderID).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return a.db.Create(&row).Error
		}
		return err
	}
	row.ID = existing.ID
	return a.db.Save(&row).Error
}

// SaveFill inserts an applied fill. Duplicate execution IDs are ignored; the
// engine already deduplicates, this guards redelivery of bus events.
func (a *Archive) SaveFill(order schema.Order, report schema.ExecutionReport) error {
	row := FillRow{
		ExecutionID:   report.ExecutionID,
		ClientOrderID: report.ClientOrderID,
		Symbol:        order.Symbol,
		Side:          order.Side.String(),
		FillPrice:     report.FillPrice,
		FillQty:       report.FillQty,
		Fee:           report.Fee,
		TimestampNs:   report.TimestampNs,
		ArchivedAt:    time.Now().UTC(),
	}
	var existing FillRow
	err := a.db.Where("execution_id = ?", report.ExecutionID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return a.db.Create(&row).Error
}

// OrdersBySymbol returns archived orders for a symbol, newest first.
func (a *Archive) OrdersBySymbol(symbol string, limit int) ([]OrderRow, error) {
	var rows []OrderRow
	q := a.db.Where("symbol = ?", symbol).Order("updated_at_ns desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
