package binance

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Funding and ratio figures come back as percentages: a funding reading
// of 0.01 means 0.01% per interval, LongRatio 62 means 62% of top
// accounts are long.

func (s *Source) FundingRate(ctx context.Context, symbol string) (float64, error) {
	symbol = cleanSymbol(symbol)
	var rate float64
	found := false
	err := s.breaker.Do(func() error {
		res, callErr := s.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
		if callErr != nil {
			return callErr
		}
		for _, entry := range res {
			if entry != nil && strings.EqualFold(entry.Symbol, symbol) {
				rate = parseFloat(entry.LastFundingRate) * 100
				found = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("funding rate not available for %s", symbol)
	}
	return rate, nil
}

func (s *Source) LongShortRatio(ctx context.Context, symbol string) (long, short float64, err error) {
	symbol = cleanSymbol(symbol)
	err = s.breaker.Do(func() error {
		res, callErr := s.client.NewTopLongShortPositionRatioService().
			Symbol(symbol).
			Period("1h").
			Limit(uint32(1)).
			Do(ctx)
		if callErr != nil {
			return callErr
		}
		if len(res) == 0 || res[len(res)-1] == nil {
			return fmt.Errorf("no long/short data for %s", symbol)
		}
		latest := res[len(res)-1]
		long = parseFloat(latest.LongAccount) * 100
		short = parseFloat(latest.ShortAccount) * 100
		return nil
	})
	return long, short, err
}

// OpenInterestChange reports percentage OI deltas over roughly the last
// hour and the last day, from hourly statistics.
func (s *Source) OpenInterestChange(ctx context.Context, symbol string) (change1h, change24h float64, err error) {
	symbol = cleanSymbol(symbol)
	err = s.breaker.Do(func() error {
		stats, callErr := s.client.NewOpenInterestStatisticsService().
			Symbol(symbol).
			Period("1h").
			Limit(25).
			Do(ctx)
		if callErr != nil {
			return callErr
		}
		if len(stats) < 2 {
			return fmt.Errorf("open interest history too short for %s", symbol)
		}
		latest := parseFloat(stats[len(stats)-1].SumOpenInterest)
		prev := parseFloat(stats[len(stats)-2].SumOpenInterest)
		oldest := parseFloat(stats[0].SumOpenInterest)
		if prev > 0 {
			change1h = (latest - prev) / prev * 100
		}
		if oldest > 0 {
			change24h = (latest - oldest) / oldest * 100
		}
		return nil
	})
	return change1h, change24h, err
}

// LiquidationVolumes sums forced-order notional over the last hour. A
// forced sell is a liquidated long, a forced buy a liquidated short.
func (s *Source) LiquidationVolumes(ctx context.Context, symbol string) (longUSD, shortUSD float64, err error) {
	symbol = cleanSymbol(symbol)
	since := time.Now().Add(-time.Hour).UnixMilli()
	err = s.breaker.Do(func() error {
		orders, callErr := s.client.NewListLiquidationOrdersService().
			Symbol(symbol).
			StartTime(since).
			Limit(1000).
			Do(ctx)
		if callErr != nil {
			return callErr
		}
		for _, o := range orders {
			if o == nil {
				continue
			}
			price := parseFloat(o.AveragePrice)
			if price <= 0 {
				price = parseFloat(o.Price)
			}
			notional := parseFloat(o.ExecutedQuantity) * price
			if strings.EqualFold(string(o.Side), "SELL") {
				longUSD += notional
			} else {
				shortUSD += notional
			}
		}
		return nil
	})
	return longUSD, shortUSD, err
}
