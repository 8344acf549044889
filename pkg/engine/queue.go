package engine

import (
	"context"
	"sync"
	"time"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
)

// requestQueue is the strict-FIFO hand-off between request producers and the
// single worker. Push never blocks; Pop blocks until a request or context
// cancellation. Idle means empty with no request mid-flight, which is the
// condition backtests drain on.
type requestQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []orders.OrderRequest
	inFlight int
}

func newRequestQueue() *requestQueue {
	q := &requestQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *requestQueue) Push(request orders.OrderRequest) {
	q.mu.Lock()
	q.items = append(q.items, request)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Pop blocks for the next request in submission order. Returns false once ctx
// is done and the queue should stop being consumed.
func (q *requestQueue) Pop(ctx context.Context) (orders.OrderRequest, bool) {
	// wake the waiter when the context dies
	stop := context.AfterFunc(ctx, func() { q.cond.Broadcast() })
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}
	request := q.items[0]
	q.items = q.items[1:]
	q.inFlight++
	return request, true
}

// Done marks the most recently popped request fully processed.
func (q *requestQueue) Done() {
	q.mu.Lock()
	q.inFlight--
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *requestQueue) IsIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0 && q.inFlight == 0
}

// WaitUntilIdle blocks until the queue is fully drained or the timeout
// elapses. Returns true when idle was reached.
func (q *requestQueue) WaitUntilIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() { q.cond.Broadcast() })
	defer timer.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) != 0 || q.inFlight != 0 {
		if !time.Now().Before(deadline) {
			return false
		}
		q.cond.Wait()
	}
	return true
}
