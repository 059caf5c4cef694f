package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := New()
	const workers = 50

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("tenant-a")
			defer unlock()
			// Non-atomic increment; only safe if the lock serializes access.
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != workers {
		t.Errorf("expected counter %d, got %d", workers, counter)
	}
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	km := New()

	unlockA := km.Lock("tenant-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("tenant-b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on an unrelated key blocked")
	}
}

func TestKeyedMutex_EntriesAreReleased(t *testing.T) {
	km := New()

	unlock := km.Lock("short-lived")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.locks) != 0 {
		t.Errorf("expected lock table to be empty, got %d entries", len(km.locks))
	}
}
