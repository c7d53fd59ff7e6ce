package exchange

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreTakeOnce(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	record := &Record{
		Code: "abc123",
		Role: "doctor",
		User: UserInfo{Email: "doctor@gmail.com"},
	}

	if err := store.Put(ctx, record); err != nil {
		t.Fatalf("putting record: %v", err)
	}

	taken, err := store.TakeOnce(ctx, "abc123")
	if err != nil {
		t.Fatalf("taking record: %v", err)
	}
	if taken.User.Email != "doctor@gmail.com" {
		t.Errorf("unexpected record: %+v", taken)
	}

	_, err = store.TakeOnce(ctx, "abc123")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second take, got %v", err)
	}
}

func TestMemoryStoreUnknownCode(t *testing.T) {
	store := NewMemoryStore(time.Minute)

	_, err := store.TakeOnce(context.Background(), "never-issued")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore(5 * time.Minute)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	if err := store.Put(ctx, &Record{Code: "stale"}); err != nil {
		t.Fatalf("putting record: %v", err)
	}

	now = now.Add(5*time.Minute + time.Second)

	_, err := store.TakeOnce(ctx, "stale")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}
}

func TestMemoryStoreConcurrentTakeOnce(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, &Record{Code: "contested"}); err != nil {
		t.Fatalf("putting record: %v", err)
	}

	const callers = 50
	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.TakeOnce(ctx, "contested")
			results <- err
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	var successes, misses int
	for err := range results {
		switch err {
		case nil:
			successes++
		case ErrNotFound:
			misses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 || misses != callers-1 {
		t.Fatalf("expected 1 success and %d misses, got %d and %d", callers-1, successes, misses)
	}
}
