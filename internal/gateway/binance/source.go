// Package binance implements the execution client and the derivatives
// metrics feed on top of the Binance USDT-margined futures API. Every
// REST call goes through a shared circuit breaker so a flapping venue
// degrades into fast local failures instead of per-tick timeouts.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2/futures"

	"cryptoden/internal/gateway/exchange"
	"cryptoden/internal/market"
	"cryptoden/internal/pkg/circuit"
	"cryptoden/internal/pkg/convert"
	symbolpkg "cryptoden/internal/pkg/symbol"
	"cryptoden/internal/signal"
)

const maxKlineLimit = 1500

var (
	_ exchange.Client      = (*Source)(nil)
	_ market.MetricsSource = (*Source)(nil)
)

type Source struct {
	cfg     Config
	client  *futures.Client
	breaker *circuit.Breaker
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	if final.Testnet {
		futures.UseTestnet = true
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	if final.RESTBaseURL != "" {
		client.BaseURL = final.RESTBaseURL
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{
		cfg:     final,
		client:  client,
		breaker: circuit.NewBreaker("binance", final.BreakerThreshold, final.BreakerCooloff),
	}
}

// GetPrice quotes the symbol's latest mark. An unknown symbol reports
// ok=false without an error.
func (s *Source) GetPrice(ctx context.Context, symbol string) (float64, bool, error) {
	symbol = cleanSymbol(symbol)
	var prices []*futures.SymbolPrice
	err := s.breaker.Do(func() error {
		var callErr error
		prices, callErr = s.client.NewListPricesService().Symbol(symbol).Do(ctx)
		if callErr != nil && strings.Contains(callErr.Error(), "Invalid symbol") {
			prices = nil
			callErr = nil
		}
		return callErr
	})
	if err != nil {
		return 0, false, err
	}
	for _, p := range prices {
		if p != nil && strings.EqualFold(p.Symbol, symbol) {
			price := parseFloat(p.Price)
			return price, price > 0, nil
		}
	}
	return 0, false, nil
}

func (s *Source) GetBalance(ctx context.Context, asset string) (float64, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	var balances []*futures.Balance
	err := s.breaker.Do(func() error {
		var callErr error
		balances, callErr = s.client.NewGetBalanceService().Do(ctx)
		return callErr
	})
	if err != nil {
		return 0, err
	}
	for _, b := range balances {
		if b != nil && strings.EqualFold(b.Asset, asset) {
			return parseFloat(b.AvailableBalance), nil
		}
	}
	return 0, fmt.Errorf("no %s balance on account", asset)
}

func (s *Source) PlaceMarketOrder(ctx context.Context, symbol string, direction signal.Direction, quantity float64) (string, error) {
	side := futures.SideTypeBuy
	if direction == signal.Short {
		side = futures.SideTypeSell
	}
	var resp *futures.CreateOrderResponse
	err := s.breaker.Do(func() error {
		var callErr error
		resp, callErr = s.client.NewCreateOrderService().
			Symbol(cleanSymbol(symbol)).
			Side(side).
			Type(futures.OrderTypeMarket).
			Quantity(formatQuantity(quantity)).
			Do(ctx)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.OrderID, 10), nil
}

func (s *Source) PlaceLimitOrder(ctx context.Context, symbol, side string, price, quantity float64) (string, error) {
	orderSide := futures.SideTypeBuy
	if strings.EqualFold(side, "sell") {
		orderSide = futures.SideTypeSell
	}
	var resp *futures.CreateOrderResponse
	err := s.breaker.Do(func() error {
		var callErr error
		resp, callErr = s.client.NewCreateOrderService().
			Symbol(cleanSymbol(symbol)).
			Side(orderSide).
			Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatQuantity(price)).
			Quantity(formatQuantity(quantity)).
			Do(ctx)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.OrderID, 10), nil
}

func (s *Source) GetOrderStatus(ctx context.Context, symbol, orderID string) (string, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("order id %q: %w", orderID, err)
	}
	var order *futures.Order
	err = s.breaker.Do(func() error {
		var callErr error
		order, callErr = s.client.NewGetOrderService().
			Symbol(cleanSymbol(symbol)).
			OrderID(id).
			Do(ctx)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return strings.ToUpper(string(order.Status)), nil
}

func (s *Source) ListOpenOrders(ctx context.Context, symbol string) ([]string, error) {
	var orders []*futures.Order
	err := s.breaker.Do(func() error {
		var callErr error
		orders, callErr = s.client.NewListOpenOrdersService().Symbol(cleanSymbol(symbol)).Do(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		if o != nil {
			ids = append(ids, strconv.FormatInt(o.OrderID, 10))
		}
	}
	return ids, nil
}

func (s *Source) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("order id %q: %w", orderID, err)
	}
	return s.breaker.Do(func() error {
		_, callErr := s.client.NewCancelOrderService().
			Symbol(cleanSymbol(symbol)).
			OrderID(id).
			Do(ctx)
		return callErr
	})
}

// FetchCandles loads closed klines, newest last.
func (s *Source) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	var kls []*futures.Kline
	err := s.breaker.Do(func() error {
		var callErr error
		kls, callErr = s.client.NewKlinesService().
			Symbol(cleanSymbol(symbol)).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func cleanSymbol(s string) string {
	return symbolpkg.Normalize(s)
}

func formatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(v string) float64 {
	return convert.ToFloat64(v)
}
