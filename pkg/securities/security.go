package securities

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Security holds the market state the engine needs to value and settle orders
// for one tradable symbol. Prices are updated concurrently by data feeds, so
// all access goes through the mutex.
type Security struct {
	mu sync.RWMutex

	Symbol        string
	QuoteCurrency string

	price              decimal.Decimal
	conversionRate     decimal.Decimal // quote currency -> account currency
	contractMultiplier decimal.Decimal
}

func NewSecurity(symbol, quoteCurrency string) *Security {
	return &Security{
		Symbol:             symbol,
		QuoteCurrency:      quoteCurrency,
		conversionRate:     decimal.NewFromInt(1),
		contractMultiplier: decimal.NewFromInt(1),
	}
}

func (s *Security) Price() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price
}

func (s *Security) SetMarketPrice(p decimal.Decimal) {
	s.mu.Lock()
	s.price = p
	s.mu.Unlock()
}

func (s *Security) ConversionRate() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversionRate
}

func (s *Security) SetConversionRate(r decimal.Decimal) {
	s.mu.Lock()
	s.conversionRate = r
	s.mu.Unlock()
}

func (s *Security) ContractMultiplier() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contractMultiplier
}

func (s *Security) SetContractMultiplier(m decimal.Decimal) {
	s.mu.Lock()
	s.contractMultiplier = m
	s.mu.Unlock()
}

// Registry is the symbol -> Security lookup table shared by the engine,
// brokerage simulations and data feeds.
type Registry struct {
	mu         sync.RWMutex
	securities map[string]*Security
}

func NewRegistry() *Registry {
	return &Registry{securities: make(map[string]*Security)}
}

func (r *Registry) Add(s *Security) {
	r.mu.Lock()
	r.securities[s.Symbol] = s
	r.mu.Unlock()
}

func (r *Registry) Get(symbol string) (*Security, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.securities[symbol]
	return s, ok
}

// MustGet panics on unknown symbols. Only for wiring code where the symbol
// set is fixed up front.
func (r *Registry) MustGet(symbol string) *Security {
	s, ok := r.Get(symbol)
	if !ok {
		panic(fmt.Sprintf("unknown security: %s", symbol))
	}
	return s
}

func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.securities))
	for sym := range r.securities {
		out = append(out, sym)
	}
	return out
}
