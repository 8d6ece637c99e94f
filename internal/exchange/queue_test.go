package exchange

import (
	"sync"
	"testing"
	"time"
)

func TestQueueDropsNewestWhenFull(t *testing.T) {
	q := NewQueue[int](2)

	results := []Result{q.Offer(1), q.Offer(2), q.Offer(3)}
	want := []Result{Accepted, Accepted, DroppedFull}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("offer %d = %v, want %v", i, results[i], want[i])
		}
	}

	if got := <-q.C(); got != 1 {
		t.Errorf("first value = %d, want 1", got)
	}
	if got := <-q.C(); got != 2 {
		t.Errorf("second value = %d, want 2 (newest should have been dropped)", got)
	}

	s := q.Stats()
	if s.Accepted != 2 || s.Full != 1 || s.Closed != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestQueueCloseDrainsThenEnds(t *testing.T) {
	q := NewQueue[string](4)
	q.Offer("a")
	q.Offer("b")
	q.Close()
	q.Close()

	if r := q.Offer("c"); r != DroppedClosed {
		t.Errorf("offer after close = %v", r)
	}

	var got []string
	for v := range q.C() {
		got = append(got, v)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("drained %v", got)
	}
	if q.Stats().Closed != 1 {
		t.Errorf("closed counter = %d", q.Stats().Closed)
	}
}

func TestQueueConcurrentOfferAndClose(t *testing.T) {
	q := NewQueue[int](8)
	var wg sync.WaitGroup
	for p := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1000 {
				q.Offer(p*1000 + i)
			}
		}()
	}

	consumed := make(chan int)
	go func() {
		n := 0
		for range q.C() {
			n++
		}
		consumed <- n
	}()

	time.Sleep(5 * time.Millisecond)
	q.Close()
	wg.Wait()

	select {
	case n := <-consumed:
		s := q.Stats()
		if uint64(n) != s.Accepted {
			t.Errorf("consumed %d, accepted %d", n, s.Accepted)
		}
		if s.Accepted+s.Full+s.Closed != 4000 {
			t.Errorf("offers not all accounted for: %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not finish")
	}
}

func TestNewQueueMinimumDepth(t *testing.T) {
	if c := NewQueue[int](0).Cap(); c != 1 {
		t.Errorf("Cap = %d, want 1", c)
	}
}
