package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Cash is one currency balance plus its conversion rate into the account
// currency.
type Cash struct {
	Symbol         string
	Amount         decimal.Decimal
	ConversionRate decimal.Decimal
}

// ValueInAccountCurrency converts the balance through its rate.
func (c Cash) ValueInAccountCurrency() decimal.Decimal {
	return c.Amount.Mul(c.ConversionRate)
}

// CashBook tracks every currency the portfolio holds. It is mutated from the
// fill path (brokerage goroutine) and from cash sync (engine goroutine), so
// every access goes through the mutex.
type CashBook struct {
	mu       sync.RWMutex
	balances map[string]Cash
}

func NewCashBook() *CashBook {
	return &CashBook{balances: make(map[string]Cash)}
}

func (b *CashBook) Get(symbol string) (Cash, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.balances[symbol]
	return c, ok
}

func (b *CashBook) Set(c Cash) {
	b.mu.Lock()
	b.balances[c.Symbol] = c
	b.mu.Unlock()
}

// Adjust adds delta to a currency, creating the entry at rate 1 when absent.
func (b *CashBook) Adjust(symbol string, delta decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.balances[symbol]
	if !ok {
		c = Cash{Symbol: symbol, ConversionRate: decimal.NewFromInt(1)}
	}
	c.Amount = c.Amount.Add(delta)
	b.balances[symbol] = c
}

// TotalValueInAccountCurrency sums every balance through its conversion rate.
func (b *CashBook) TotalValueInAccountCurrency() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := decimal.Decimal{}
	for _, c := range b.balances {
		total = total.Add(c.ValueInAccountCurrency())
	}
	return total
}

func (b *CashBook) All() []Cash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Cash, 0, len(b.balances))
	for _, c := range b.balances {
		out = append(out, c)
	}
	return out
}
