package rf

import (
	"context"
	"testing"
	"time"
)

func TestEdgeQueue_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		if _, err := NewEdgeQueue(capacity); err == nil {
			t.Errorf("Expected error for capacity %d, got nil", capacity)
		}
	}
}

func TestEdgeQueue_Ordering(t *testing.T) {
	q, err := NewEdgeQueue(8)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	for i := 0; i < 5; i++ {
		q.Push(Edge{Timestamp: uint64(i + 1), Level: i%2 == 0})
	}

	if got := q.Len(); got != 5 {
		t.Fatalf("Expected queue length 5, got %d", got)
	}

	for i := 0; i < 5; i++ {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop %d: queue unexpectedly empty", i)
		}
		if e.Timestamp != uint64(i+1) {
			t.Errorf("Pop %d: expected timestamp %d, got %d", i, i+1, e.Timestamp)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("Expected empty queue after draining")
	}
}

func TestEdgeQueue_OverflowDropsOldest(t *testing.T) {
	q, err := NewEdgeQueue(4)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	// Push 7 edges into a queue of 4: edges 1..3 must be dropped,
	// edges 4..7 must survive in order.
	for i := 1; i <= 7; i++ {
		q.Push(Edge{Timestamp: uint64(i)})
	}

	if got := q.Drops(); got != 3 {
		t.Errorf("Expected exactly 3 drops, got %d", got)
	}
	if got := q.Len(); got != 4 {
		t.Errorf("Expected queue length 4, got %d", got)
	}

	want := []uint64{4, 5, 6, 7}
	for i, ts := range want {
		e, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop %d: queue unexpectedly empty", i)
		}
		if e.Timestamp != ts {
			t.Errorf("Pop %d: expected timestamp %d, got %d", i, ts, e.Timestamp)
		}
	}
}

func TestEdgeQueue_WaitCancelled(t *testing.T) {
	q, err := NewEdgeQueue(4)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Wait(ctx) {
		t.Error("Expected Wait to return false on cancelled context")
	}
}

func TestEdgeQueue_WaitWakesOnPush(t *testing.T) {
	q, err := NewEdgeQueue(4)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(Edge{Timestamp: 1, Level: High})
	}()

	if !q.Wait(ctx) {
		t.Fatal("Expected Wait to return true after a push")
	}
	if _, ok := q.Pop(); !ok {
		t.Error("Expected the pushed edge to be available")
	}
}
