// Package exchange defines the order-execution surface the engines
// depend on, so paper and real implementations stay interchangeable.
package exchange

import (
	"context"

	"cryptoden/internal/signal"
)

// Order statuses reported by GetOrderStatus, normalized to upper case.
const (
	OrderStatusNew       = "NEW"
	OrderStatusFilled    = "FILLED"
	OrderStatusCancelled = "CANCELED"
	OrderStatusRejected  = "REJECTED"
	OrderStatusExpired   = "EXPIRED"
)

// Client is the full execution surface. GetPrice reports ok=false for a
// symbol the venue does not quote; that is not an error.
type Client interface {
	GetPrice(ctx context.Context, symbol string) (price float64, ok bool, err error)
	GetBalance(ctx context.Context, asset string) (float64, error)
	PlaceMarketOrder(ctx context.Context, symbol string, direction signal.Direction, quantity float64) (orderID string, err error)
	PlaceLimitOrder(ctx context.Context, symbol, side string, price, quantity float64) (orderID string, err error)
	GetOrderStatus(ctx context.Context, symbol, orderID string) (string, error)
	ListOpenOrders(ctx context.Context, symbol string) ([]string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}
