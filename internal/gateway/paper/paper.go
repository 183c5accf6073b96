// Package paper is the in-memory exchange used in paper mode and tests:
// virtual order ids, immediate bookkeeping, no network.
package paper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cryptoden/internal/gateway/exchange"
	"cryptoden/internal/logger"
	"cryptoden/internal/signal"
)

type order struct {
	id       string
	symbol   string
	side     string
	price    float64
	quantity float64
	status   string
}

type Exchange struct {
	mu      sync.Mutex
	prices  map[string]float64
	balance map[string]float64
	orders  map[string]*order
}

var _ exchange.Client = (*Exchange)(nil)

func New(startingUSDT float64) *Exchange {
	if startingUSDT <= 0 {
		startingUSDT = 10000
	}
	return &Exchange{
		prices:  make(map[string]float64),
		balance: map[string]float64{"USDT": startingUSDT},
		orders:  make(map[string]*order),
	}
}

// UpdatePrice records the latest tick and fills any resting limit order
// the tick crossed: a buy fills when the tick drops to its price, a sell
// when the tick rises to it.
func (e *Exchange) UpdatePrice(symbol string, price float64) {
	if price <= 0 {
		return
	}
	symbol = normalize(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prices[symbol] = price
	for _, o := range e.orders {
		if o.symbol != symbol || o.status != exchange.OrderStatusNew {
			continue
		}
		crossed := (o.side == "buy" && price <= o.price) ||
			(o.side == "sell" && price >= o.price)
		if crossed {
			o.status = exchange.OrderStatusFilled
			logger.Debugf("paper: limit %s %s filled @ %.4f", o.side, symbol, o.price)
		}
	}
}

func (e *Exchange) GetPrice(ctx context.Context, symbol string) (float64, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	price, ok := e.prices[normalize(symbol)]
	return price, ok && price > 0, nil
}

func (e *Exchange) GetBalance(ctx context.Context, asset string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance[strings.ToUpper(strings.TrimSpace(asset))], nil
}

// SetBalance overrides an asset balance; test and restart plumbing.
func (e *Exchange) SetBalance(asset string, amount float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.balance[strings.ToUpper(strings.TrimSpace(asset))] = amount
}

func (e *Exchange) PlaceMarketOrder(ctx context.Context, symbol string, direction signal.Direction, quantity float64) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("paper: quantity must be positive, got %v", quantity)
	}
	symbol = normalize(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()

	price, ok := e.prices[symbol]
	if !ok || price <= 0 {
		return "", fmt.Errorf("paper: no price for %s", symbol)
	}
	side := "buy"
	if direction == signal.Short {
		side = "sell"
	}
	o := &order{
		id: newOrderID(), symbol: symbol, side: side,
		price: price, quantity: quantity,
		status: exchange.OrderStatusFilled,
	}
	e.orders[o.id] = o
	logger.Infof("paper: market %s %s %.6f @ %.4f", side, symbol, quantity, price)
	return o.id, nil
}

func (e *Exchange) PlaceLimitOrder(ctx context.Context, symbol, side string, price, quantity float64) (string, error) {
	if price <= 0 || quantity <= 0 {
		return "", fmt.Errorf("paper: price and quantity must be positive")
	}
	side = strings.ToLower(strings.TrimSpace(side))
	if side != "buy" && side != "sell" {
		return "", fmt.Errorf("paper: unknown side %q", side)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	o := &order{
		id: newOrderID(), symbol: normalize(symbol), side: side,
		price: price, quantity: quantity,
		status: exchange.OrderStatusNew,
	}
	e.orders[o.id] = o
	return o.id, nil
}

func (e *Exchange) GetOrderStatus(ctx context.Context, symbol, orderID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return "", fmt.Errorf("paper: unknown order %s", orderID)
	}
	return o.status, nil
}

func (e *Exchange) ListOpenOrders(ctx context.Context, symbol string) ([]string, error) {
	symbol = normalize(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []string
	for _, o := range e.orders {
		if o.symbol == symbol && o.status == exchange.OrderStatusNew {
			ids = append(ids, o.id)
		}
	}
	return ids, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("paper: unknown order %s", orderID)
	}
	if o.status != exchange.OrderStatusNew {
		return fmt.Errorf("paper: order %s is %s, not cancellable", orderID, o.status)
	}
	o.status = exchange.OrderStatusCancelled
	return nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func newOrderID() string {
	return "paper-" + uuid.NewString()[:8]
}
