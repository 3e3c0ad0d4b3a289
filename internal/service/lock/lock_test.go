package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLocalSerializesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "therapist:a")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			maxInside = max(maxInside, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("%d holders at once, want 1", maxInside)
	}
	if len(l.keys) != 0 {
		t.Errorf("%d idle keys retained", len(l.keys))
	}
}

func TestLocalRespectsContext(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); err == nil {
		t.Fatal("second Lock() should time out")
	}

	other, err := l.Lock(context.Background(), "other")
	if err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}
	other()
	other() // idempotent
}

func TestTherapistKey(t *testing.T) {
	id := uuid.MustParse("0190c1f2-0000-7000-8000-000000000001")
	if got := TherapistKey(id); got != "therapist:0190c1f2-0000-7000-8000-000000000001" {
		t.Errorf("TherapistKey() = %q", got)
	}
}
