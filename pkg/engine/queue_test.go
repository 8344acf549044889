package engine

import (
	"context"
	"testing"
	"time"

	"github.com/daehwan-kim/tradeflow/pkg/orders"
)

func submitReq(id int64) *orders.SubmitOrderRequest {
	return orders.NewSubmitOrderRequest(id, "ES", 10, orders.OrderKindMarket, time.Now())
}

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()
	for i := int64(1); i <= 5; i++ {
		q.Push(submitReq(i))
	}

	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		req, ok := q.Pop(ctx)
		if !ok {
			t.Fatalf("Pop returned false at %d", i)
		}
		if req.OrderID() != i {
			t.Fatalf("popped order %d, want %d", req.OrderID(), i)
		}
		q.Done()
	}
	if !q.IsIdle() {
		t.Error("drained queue must be idle")
	}
}

func TestRequestQueue_PopBlocksUntilPush(t *testing.T) {
	q := newRequestQueue()

	got := make(chan int64, 1)
	go func() {
		req, ok := q.Pop(context.Background())
		if ok {
			got <- req.OrderID()
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(submitReq(7))

	select {
	case id := <-got:
		if id != 7 {
			t.Errorf("popped %d, want 7", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never woke up")
	}
}

func TestRequestQueue_PopReturnsFalseOnCancel(t *testing.T) {
	q := newRequestQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop returned a request after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after cancellation")
	}
}

func TestRequestQueue_IdleTracksInFlight(t *testing.T) {
	q := newRequestQueue()
	q.Push(submitReq(1))

	if q.IsIdle() {
		t.Fatal("queue with a pending item reported idle")
	}
	if _, ok := q.Pop(context.Background()); !ok {
		t.Fatal("Pop failed")
	}
	// popped but not done: still busy
	if q.IsIdle() {
		t.Fatal("queue with an in-flight item reported idle")
	}
	q.Done()
	if !q.IsIdle() {
		t.Fatal("queue did not return to idle")
	}
}

func TestRequestQueue_WaitUntilIdle(t *testing.T) {
	q := newRequestQueue()
	q.Push(submitReq(1))

	if q.WaitUntilIdle(50 * time.Millisecond) {
		t.Fatal("WaitUntilIdle succeeded with an unconsumed request")
	}

	go func() {
		req, ok := q.Pop(context.Background())
		if !ok || req == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
		q.Done()
	}()

	if !q.WaitUntilIdle(time.Second) {
		t.Fatal("WaitUntilIdle timed out on a draining queue")
	}
}
