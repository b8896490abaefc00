package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRingBuffer_MPMC(t *testing.T) {
	rb := NewRingBuffer[int](1024)
	producers := 10
	consumers := 10
	itemsPerProducer := 10000

	var wg sync.WaitGroup
	var sentSum int64
	var receivedSum int64
	var receivedCount int64
	totalItems := int64(producers * itemsPerProducer)

	// Producers
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < itemsPerProducer; i++ {
				val := pid*itemsPerProducer + i + 1
				for !rb.Enqueue(val) {
					runtime.Gosched()
				}
				atomic.AddInt64(&sentSum, int64(val))
			}
		}(p)
	}

	// Consumers
	consumerWg := sync.WaitGroup{}
	for c := 0; c < consumers; c++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				if val, ok := rb.Dequeue(); ok {
					atomic.AddInt64(&receivedSum, int64(val))
					if atomic.AddInt64(&receivedCount, 1) == totalItems {
						return
					}
				} else {
					if atomic.LoadInt64(&receivedCount) >= totalItems {
						return
					}
					runtime.Gosched()
				}
			}
		}()
	}

	wg.Wait()

	done := make(chan struct{})
	go func() {
		consumerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if sentSum != receivedSum {
			t.Errorf("Checksum mismatch: sent %d, received %d", sentSum, receivedSum)
		}
	case <-time.After(5 * time.Second):
		t.Errorf("Timeout waiting for consumers. Received %d/%d", atomic.LoadInt64(&receivedCount), totalItems)
	}
}

func TestRingBuffer_Bounds(t *testing.T) {
	rb := NewRingBuffer[int](3)
	if rb.Cap() != 4 {
		t.Fatalf("Cap() = %d, want 4 (rounded to power of two)", rb.Cap())
	}
	for i := 0; i < 4; i++ {
		if !rb.Enqueue(i) {
			t.Fatalf("enqueue %d failed on non-full ring", i)
		}
	}
	if rb.Enqueue(99) {
		t.Fatal("enqueue succeeded on full ring")
	}
	if rb.Len() != 4 {
		t.Errorf("Len() = %d, want 4", rb.Len())
	}
	for i := 0; i < 4; i++ {
		v, ok := rb.Dequeue()
		if !ok || v != i {
			t.Fatalf("dequeue = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	if _, ok := rb.Dequeue(); ok {
		t.Fatal("dequeue succeeded on empty ring")
	}
}

func TestBackoff_Caps(t *testing.T) {
	b := NewBackoff(time.Microsecond, 8*time.Microsecond)
	for i := 0; i < yieldRounds; i++ {
		if d := b.Next(); d != 0 {
			t.Fatalf("round %d: expected yield, got %v", i, d)
		}
	}
	want := []time.Duration{1, 2, 4, 8, 8, 8}
	for i, w := range want {
		if d := b.Next(); d != w*time.Microsecond {
			t.Fatalf("step %d: got %v, want %v", i, d, w*time.Microsecond)
		}
	}
	b.Reset()
	if d := b.Next(); d != 0 {
		t.Errorf("after Reset expected yield, got %v", d)
	}
}

func TestSafeCall_RecoversPanic(t *testing.T) {
	err := SafeCall(func() error { panic("boom") })
	pe, ok := err.(*PanicError)
	if !ok {
		t.Fatalf("expected *PanicError, got %T (%v)", err, err)
	}
	if pe.Value != "boom" || len(pe.Stack) == 0 {
		t.Errorf("unexpected panic error: %+v", pe)
	}
	if err := SafeCall(func() error { return nil }); err != nil {
		t.Errorf("SafeCall(nil-returning fn) = %v", err)
	}
}
