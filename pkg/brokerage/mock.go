package brokerage

import (
	"sync"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
	"github.com/daehwan-kim/tradeflow/pkg/portfolio"
)

// Mock is a scriptable brokerage for tests: results are pre-set, every call is
// recorded, and events are emitted on whatever goroutine the test chooses.
type Mock struct {
	mu sync.Mutex

	PlaceErr  error
	UpdateErr error
	CancelErr error

	// PanicOnPlace makes PlaceOrder panic, to exercise the handler's
	// venue-exception containment.
	PanicOnPlace bool

	Balances   []portfolio.Cash
	BalanceErr error

	Placed   []*orders.Order
	Updated  []*orders.Order
	Canceled []*orders.Order

	onOrder   func(*orders.OrderEvent)
	onAccount func(AccountEvent)
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) PlaceOrder(order *orders.Order) error {
	m.mu.Lock()
	panicking := m.PanicOnPlace
	if !panicking {
		m.Placed = append(m.Placed, order.Clone())
	}
	err := m.PlaceErr
	m.mu.Unlock()
	if panicking {
		panic("mock brokerage: place order blew up")
	}
	return err
}

func (m *Mock) UpdateOrder(order *orders.Order) error {
	m.mu.Lock()
	m.Updated = append(m.Updated, order.Clone())
	err := m.UpdateErr
	m.mu.Unlock()
	return err
}

func (m *Mock) CancelOrder(order *orders.Order) error {
	m.mu.Lock()
	m.Canceled = append(m.Canceled, order.Clone())
	err := m.CancelErr
	m.mu.Unlock()
	return err
}

func (m *Mock) CashBalance() ([]portfolio.Cash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]portfolio.Cash(nil), m.Balances...), m.BalanceErr
}

func (m *Mock) SetEventHandlers(onOrder func(*orders.OrderEvent), onAccount func(AccountEvent)) {
	m.mu.Lock()
	m.onOrder = onOrder
	m.onAccount = onAccount
	m.mu.Unlock()
}

func (m *Mock) EmitOrderEvent(e *orders.OrderEvent) {
	m.mu.Lock()
	fn := m.onOrder
	m.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

func (m *Mock) EmitAccountEvent(e AccountEvent) {
	m.mu.Lock()
	fn := m.onAccount
	m.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

func (m *Mock) PlacedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Placed)
}
