// Package store defines the persistence surface: an id-keyed open-trade
// ledger, an append-only closed-trade history, and a symbol-keyed grid
// level table.
package store

import (
	"cryptoden/internal/grid"
	"cryptoden/internal/trade"
)

type Store interface {
	SaveOpenTrade(t trade.Trade) error
	DeleteOpenTrade(id string) error
	ListOpenTrades() ([]trade.Trade, error)

	AppendClosedTrade(t trade.Trade) error
	ListClosedTrades(limit int) ([]trade.Trade, error)

	SaveGridLevels(symbol string, levels []grid.Level) error
	LoadGridLevels(symbol string) ([]grid.Level, error)

	Close() error
}
