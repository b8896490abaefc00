package pool_test

import (
	"bytes"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/pool"
)

func newPool(t *testing.T, kind api.PoolKind, n int) *pool.BufferPool {
	t.Helper()
	p, err := pool.NewBufferPool(kind, n, pool.DefaultBufferSize)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	return p
}

func TestBufferPool_ExhaustAndReuse(t *testing.T) {
	p := newPool(t, api.ReadPool, 4)
	var held []*pool.Buffer
	for i := 0; i < 4; i++ {
		b, ok := p.Acquire()
		if !ok {
			t.Fatalf("acquire %d failed", i)
		}
		if b.State() != api.InFlightRead {
			t.Fatalf("state after acquire = %v", b.State())
		}
		held = append(held, b)
	}
	if _, ok := p.Acquire(); ok {
		t.Fatal("acquire on exhausted pool must report unavailable")
	}
	if s := p.Stats(); s.Misses != 1 || s.Free != 0 || s.InUse != 4 {
		t.Fatalf("unexpected stats %+v", s)
	}
	for _, b := range held {
		if err := b.Release(); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
	if s := p.Stats(); s.Free != 4 || s.Releases != 4 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestBufferPool_NoStaleBytes(t *testing.T) {
	p := newPool(t, api.WritePool, 1)
	b, _ := p.Acquire()
	if !b.Fill([]byte("secret-payload")) {
		t.Fatal("fill failed")
	}
	b.SetEndpoint(api.EndpointFrom4([4]byte{10, 0, 0, 1}, 9))
	_ = b.Release()

	b, _ = p.Acquire()
	if b.Len() != 0 || len(b.Bytes()) != 0 {
		t.Fatalf("reacquired buffer exposes %d bytes", len(b.Bytes()))
	}
	if !b.Endpoint().IsZero() {
		t.Fatalf("endpoint not reset: %v", b.Endpoint())
	}
	b.SetLen(3)
	if !bytes.Equal(b.Bytes(), []byte("sec")) {
		t.Fatalf("Bytes not bounded by Len: %q", b.Bytes())
	}
}

func TestBufferPool_Misuse(t *testing.T) {
	rp := newPool(t, api.ReadPool, 2)
	wp := newPool(t, api.WritePool, 2)

	b, _ := rp.Acquire()
	if err := wp.Release(b); !errors.Is(err, pool.ErrForeignBuffer) {
		t.Fatalf("foreign release: got %v", err)
	}
	if err := rp.Release(b); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := rp.Release(b); !errors.Is(err, pool.ErrDoubleRelease) {
		t.Fatalf("double release: got %v", err)
	}
	if s := rp.Stats(); s.Free != 2 || s.Releases != 1 {
		t.Fatalf("pool changed by misuse: %+v", s)
	}
}

func TestBufferPool_FillTooLarge(t *testing.T) {
	p, err := pool.NewBufferPool(api.WritePool, 1, 16)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := p.Acquire()
	if b.Fill(make([]byte, 17)) {
		t.Fatal("oversized fill accepted")
	}
	if b.Len() != 0 {
		t.Fatalf("len = %d", b.Len())
	}
}

func TestBufferPool_ConcurrentCardinality(t *testing.T) {
	const n = 256
	p := newPool(t, api.ReadPool, n)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10000; i++ {
				b, ok := p.Acquire()
				if !ok {
					continue
				}
				b.Storage()[0] = byte(i)
				if err := b.Release(); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	s := p.Stats()
	if s.Free != n || s.Capacity != n {
		t.Fatalf("cardinality changed: %+v", s)
	}
	if s.Acquires != s.Releases {
		t.Fatalf("acquires %d != releases %d", s.Acquires, s.Releases)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// A pool with as many buffers as goroutines keeps the free-list at the
// wrap point, where a Release races the Dequeue that recycles its cell.
func TestBufferPool_ReleaseAtWrapPoint(t *testing.T) {
	const (
		n     = 4
		iters = 50000
	)
	p := newPool(t, api.WritePool, n)
	var wg sync.WaitGroup
	for g := 0; g < n; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				b, ok := p.Acquire()
				if !ok {
					runtime.Gosched()
					continue
				}
				if err := p.Release(b); err != nil {
					t.Errorf("release %d: %v", b.Index(), err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if s := p.Stats(); s.Free != n || s.InUse != 0 || s.Acquires != s.Releases {
		t.Fatalf("pool lost buffers: %+v", s)
	}
	for i := 0; i < n; i++ {
		if _, ok := p.Acquire(); !ok {
			t.Fatalf("only %d of %d buffers reachable", i, n)
		}
	}
}

func TestBufferPool_DistinctStorage(t *testing.T) {
	p := newPool(t, api.ReadPool, 3)
	a, _ := p.Acquire()
	b, _ := p.Acquire()
	a.Storage()[0] = 1
	b.Storage()[0] = 2
	if a.Storage()[0] != 1 || cap(a.Storage()) != pool.DefaultBufferSize {
		t.Fatal("buffers share storage")
	}
	if a.Index() == b.Index() {
		t.Fatal("duplicate index")
	}
}
