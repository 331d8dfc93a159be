package identifier

import (
	"sync"
	"testing"
)

func TestNewIDFormat(t *testing.T) {
	gen := NewULIDGenerator()

	id := gen.NewID()
	if len(id) != 26 {
		t.Fatalf("expected 26-character ULID, got %q (%d)", id, len(id))
	}
}

func TestNewIDMonotonicWithinProcess(t *testing.T) {
	gen := NewULIDGenerator()

	prev := gen.NewID()
	for i := 0; i < 100; i++ {
		next := gen.NewID()
		if next <= prev {
			t.Fatalf("expected strictly increasing ids, got %q after %q", next, prev)
		}
		prev = next
	}
}

func TestNewIDConcurrentUniqueness(t *testing.T) {
	gen := NewULIDGenerator()

	const workers = 8
	const perWorker = 200

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := gen.NewID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d unique ids, got %d", workers*perWorker, len(seen))
	}
}
