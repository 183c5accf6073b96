package gormstore

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"cryptoden/internal/grid"
	"cryptoden/internal/signal"
	"cryptoden/internal/trade"
)

type openTradeModel struct {
	ID            string  `gorm:"column:id;primaryKey"`
	Symbol        string  `gorm:"column:symbol;index"`
	Direction     string  `gorm:"column:direction"`
	EntryPrice    float64 `gorm:"column:entry_price"`
	Quantity      float64 `gorm:"column:quantity"`
	StopLoss      float64 `gorm:"column:stop_loss"`
	TakeProfit    float64 `gorm:"column:take_profit"`
	Source        string  `gorm:"column:source"`
	OpenedAt      time.Time
	MaxHoldNanos  int64          `gorm:"column:max_hold_ns"`
	LastPrice     float64        `gorm:"column:last_price"`
	UnrealizedPnL float64        `gorm:"column:unrealized_pnl"`
	TrailingJSON  datatypes.JSON `gorm:"column:trailing_json;type:TEXT"`
	ProfileJSON   datatypes.JSON `gorm:"column:profile_json;type:TEXT"`
}

func (openTradeModel) TableName() string { return "open_trades" }

type closedTradeModel struct {
	SeqID        uint   `gorm:"column:seq_id;primaryKey;autoIncrement"`
	TradeID      string `gorm:"column:trade_id;index"`
	Symbol       string `gorm:"column:symbol;index"`
	Direction    string `gorm:"column:direction"`
	EntryPrice   float64
	Quantity     float64
	StopLoss     float64
	TakeProfit   float64
	Source       string
	OpenedAt     time.Time
	ClosedAt     time.Time `gorm:"index"`
	ClosePrice   float64
	CloseReason  string
	RealizedPnL  float64        `gorm:"column:realized_pnl"`
	TrailingJSON datatypes.JSON `gorm:"column:trailing_json;type:TEXT"`
}

func (closedTradeModel) TableName() string { return "closed_trades" }

type gridLevelModel struct {
	ID        string `gorm:"column:id;primaryKey"`
	Symbol    string `gorm:"column:symbol;index"`
	Side      string
	Price     float64
	Quantity  float64
	Status    string
	OrderID   string `gorm:"column:order_id"`
	CreatedAt time.Time
	FilledAt  time.Time
	MetaJSON  datatypes.JSON `gorm:"column:meta_json;type:TEXT"`
}

func (gridLevelModel) TableName() string { return "grid_levels" }

type levelMeta struct {
	LinkedLevelID  string  `json:"linked_level_id,omitempty"`
	ExpectedProfit float64 `json:"expected_profit,omitempty"`
}

func toOpenModel(t trade.Trade) (openTradeModel, error) {
	trailing, err := json.Marshal(t.Trailing)
	if err != nil {
		return openTradeModel{}, err
	}
	profile, err := json.Marshal(t.Profile)
	if err != nil {
		return openTradeModel{}, err
	}
	return openTradeModel{
		ID:            t.ID,
		Symbol:        t.Symbol,
		Direction:     string(t.Direction),
		EntryPrice:    t.EntryPrice,
		Quantity:      t.Quantity,
		StopLoss:      t.StopLoss,
		TakeProfit:    t.TakeProfit,
		Source:        t.Source,
		OpenedAt:      t.OpenedAt,
		MaxHoldNanos:  int64(t.MaxHold),
		LastPrice:     t.LastPrice,
		UnrealizedPnL: t.UnrealizedPnL,
		TrailingJSON:  datatypes.JSON(trailing),
		ProfileJSON:   datatypes.JSON(profile),
	}, nil
}

func fromOpenModel(m openTradeModel) trade.Trade {
	t := trade.Trade{
		ID:            m.ID,
		Symbol:        m.Symbol,
		Direction:     signal.Direction(m.Direction),
		EntryPrice:    m.EntryPrice,
		Quantity:      m.Quantity,
		StopLoss:      m.StopLoss,
		TakeProfit:    m.TakeProfit,
		Source:        m.Source,
		Status:        trade.StatusOpen,
		OpenedAt:      m.OpenedAt,
		MaxHold:       time.Duration(m.MaxHoldNanos),
		LastPrice:     m.LastPrice,
		UnrealizedPnL: m.UnrealizedPnL,
	}
	if len(m.TrailingJSON) > 0 {
		_ = json.Unmarshal(m.TrailingJSON, &t.Trailing)
	}
	if len(m.ProfileJSON) > 0 {
		_ = json.Unmarshal(m.ProfileJSON, &t.Profile)
	}
	return t
}

func toClosedModel(t trade.Trade) (closedTradeModel, error) {
	trailing, err := json.Marshal(t.Trailing)
	if err != nil {
		return closedTradeModel{}, err
	}
	return closedTradeModel{
		TradeID:      t.ID,
		Symbol:       t.Symbol,
		Direction:    string(t.Direction),
		EntryPrice:   t.EntryPrice,
		Quantity:     t.Quantity,
		StopLoss:     t.StopLoss,
		TakeProfit:   t.TakeProfit,
		Source:       t.Source,
		OpenedAt:     t.OpenedAt,
		ClosedAt:     t.ClosedAt,
		ClosePrice:   t.ClosePrice,
		CloseReason:  string(t.CloseReason),
		RealizedPnL:  t.RealizedPnL,
		TrailingJSON: datatypes.JSON(trailing),
	}, nil
}

func fromClosedModel(m closedTradeModel) trade.Trade {
	t := trade.Trade{
		ID:          m.TradeID,
		Symbol:      m.Symbol,
		Direction:   signal.Direction(m.Direction),
		EntryPrice:  m.EntryPrice,
		Quantity:    m.Quantity,
		StopLoss:    m.StopLoss,
		TakeProfit:  m.TakeProfit,
		Source:      m.Source,
		Status:      trade.StatusClosed,
		OpenedAt:    m.OpenedAt,
		ClosedAt:    m.ClosedAt,
		ClosePrice:  m.ClosePrice,
		CloseReason: trade.CloseReason(m.CloseReason),
		RealizedPnL: m.RealizedPnL,
	}
	if len(m.TrailingJSON) > 0 {
		_ = json.Unmarshal(m.TrailingJSON, &t.Trailing)
	}
	return t
}

func toLevelModel(lv grid.Level) (gridLevelModel, error) {
	meta, err := json.Marshal(levelMeta{
		LinkedLevelID:  lv.LinkedLevelID,
		ExpectedProfit: lv.ExpectedProfit,
	})
	if err != nil {
		return gridLevelModel{}, err
	}
	return gridLevelModel{
		ID:        lv.ID,
		Symbol:    lv.Symbol,
		Side:      string(lv.Side),
		Price:     lv.Price,
		Quantity:  lv.Quantity,
		Status:    string(lv.Status),
		OrderID:   lv.OrderID,
		CreatedAt: lv.CreatedAt,
		FilledAt:  lv.FilledAt,
		MetaJSON:  datatypes.JSON(meta),
	}, nil
}

func fromLevelModel(m gridLevelModel) grid.Level {
	lv := grid.Level{
		ID:        m.ID,
		Symbol:    m.Symbol,
		Side:      grid.Side(m.Side),
		Price:     m.Price,
		Quantity:  m.Quantity,
		Status:    grid.Status(m.Status),
		OrderID:   m.OrderID,
		CreatedAt: m.CreatedAt,
		FilledAt:  m.FilledAt,
	}
	if len(m.MetaJSON) > 0 {
		var meta levelMeta
		if json.Unmarshal(m.MetaJSON, &meta) == nil {
			lv.LinkedLevelID = meta.LinkedLevelID
			lv.ExpectedProfit = meta.ExpectedProfit
		}
	}
	return lv
}
