package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGateSerializes(t *testing.T) {
	gate := NewGate(GlobalGenerationKey)
	ctx := context.Background()

	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// A second waiter with a short deadline must time out.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := gate.Acquire(short)
	if err == nil {
		gate.Release()
		t.Fatal("second acquire succeeded while gate held")
	}
	var te *TimeoutError
	if !errors.As(err, &te) || te.Key != GlobalGenerationKey {
		t.Fatalf("expected TimeoutError for %q, got %v", GlobalGenerationKey, err)
	}

	gate.Release()
	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	gate.Release()
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Acquire(ctx, "nova|red dress")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("same key ran %d holders concurrently", maxActive)
	}
	if km.Len() != 0 {
		t.Fatalf("registry leaked %d entries", km.Len())
	}
}

func TestKeyedMutexDifferentKeysIndependent(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := km.Acquire(ctx, "nova|red dress")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	// A different key is acquirable immediately.
	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	releaseB, err := km.Acquire(short, "luna|blue cat")
	if err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}
	releaseB()
}

func TestKeyedMutexCancelledWaiter(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	release, err := km.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := km.Acquire(short, "k"); err == nil {
		t.Fatal("expected timeout for second holder")
	}

	release()
	if km.Len() != 0 {
		t.Fatalf("registry leaked %d entries after cancelled waiter", km.Len())
	}

	// Key is usable again after the failed wait.
	release2, err := km.Acquire(ctx, "k")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	release2()
}

func TestReleaseIsIdempotent(t *testing.T) {
	km := NewKeyedMutex()
	release, err := km.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
	release()
	if km.Len() != 0 {
		t.Fatalf("registry has %d entries", km.Len())
	}
}
