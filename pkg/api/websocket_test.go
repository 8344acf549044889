package api

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
)

func TestHub_BroadcastDropsSlowClient(t *testing.T) {
	h := NewHub(zap.NewNop())
	go h.Run()

	fast := &client{send: make(chan []byte, 64)}
	slow := &client{send: make(chan []byte)} // nothing ever drains it
	h.register <- fast
	h.register <- slow

	for i := 0; i < 20; i++ {
		h.OrderEvent(&orders.OrderEvent{
			OrderID: 1,
			Symbol:  "ES",
			Status:  orders.OrderStatusSubmitted,
			Time:    time.Now(),
		})
	}

	select {
	case <-fast.send:
	case <-time.After(time.Second):
		t.Fatal("fast client received nothing")
	}

	deadline := time.After(time.Second)
	for {
		h.mu.RLock()
		_, stillThere := h.clients[slow]
		remaining := len(h.clients)
		h.mu.RUnlock()
		if !stillThere && remaining == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("slow client was not dropped")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
