// Package symbol normalizes trading pair notation. Config and user input
// may write "BTC/USDT" or "btcusdt"; the exchange wants "BTCUSDT".
package symbol

import "strings"

// Common quote currencies, longest first so "BTCUSDT" splits before "BTCBTC"
// style false positives.
var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

// Symbol is a parsed base/quote pair.
type Symbol struct {
	Base  string
	Quote string
}

// Binance renders the pair in Binance futures notation.
func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Parse accepts "BTC/USDT", "BTCUSDT" or exchange-suffixed forms like
// "BTC/USDT:USDT" and returns the pair. Unknown quotes leave Quote empty.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{Base: strings.TrimSpace(parts[0]), Quote: strings.TrimSpace(parts[1])}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{Base: s}
}

// Normalize collapses any accepted notation to uppercase exchange form.
func Normalize(s string) string {
	sym := Parse(s)
	if out := sym.Binance(); out != "" {
		return out
	}
	return sym.Base
}
