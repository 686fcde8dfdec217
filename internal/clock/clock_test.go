package clock

import (
	"sync"
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2025, 3, 1, 8, 59, 30, 0, time.UTC)
	fake := NewFake(start)

	if got := fake.Advance(35 * time.Second); !got.Equal(start.Add(35 * time.Second)) {
		t.Fatalf("unexpected time after advance: %s", got)
	}

	fake.Set(start)
	if !fake.Now().Equal(start) {
		t.Fatalf("expected Set to rewind clock, got %s", fake.Now())
	}
}

func TestFakeConcurrentAdvance(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	fake := NewFake(start)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fake.Advance(time.Second)
		}()
	}
	wg.Wait()

	if got := fake.Now().Sub(start); got != 50*time.Second {
		t.Fatalf("expected 50s elapsed, got %s", got)
	}
}

func TestRealUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	now := Real(loc).Now()
	if now.Location() != loc {
		t.Fatalf("expected location %v, got %v", loc, now.Location())
	}
}
