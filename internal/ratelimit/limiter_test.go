package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_AdmitsUpToMax(t *testing.T) {
	t.Parallel()

	l := New(10)
	now := time.Now()

	for i := 0; i < 10; i++ {
		if res := l.Allow(now); !res.Allowed {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}
	if res := l.Allow(now); res.Allowed {
		t.Fatal("11th request in the same window should be rejected")
	}
}

func TestLimiter_AdmitsAfterWindowPasses(t *testing.T) {
	t.Parallel()

	l := New(5)
	start := time.Now()

	for i := 0; i < 5; i++ {
		if res := l.Allow(start); !res.Allowed {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}
	if res := l.Allow(start); res.Allowed {
		t.Fatal("6th request at the same instant should be rejected")
	}

	// 1.1s later the window has rolled past all admissions.
	later := start.Add(1100 * time.Millisecond)
	if res := l.Allow(later); !res.Allowed {
		t.Fatal("request after the window passed should be admitted")
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	t.Parallel()

	l := New(1)
	now := time.Now()

	if res := l.Allow(now); !res.Allowed {
		t.Fatal("first request should be admitted")
	}
	res := l.Allow(now.Add(400 * time.Millisecond))
	if res.Allowed {
		t.Fatal("second request inside the window should be rejected")
	}
	if res.RetryAfter != 600*time.Millisecond {
		t.Errorf("RetryAfter = %v, want 600ms", res.RetryAfter)
	}
}

func TestLimiter_Remaining(t *testing.T) {
	t.Parallel()

	l := New(3)
	now := time.Now()

	for want := 2; want >= 0; want-- {
		res := l.Allow(now)
		if !res.Allowed {
			t.Fatal("request should be admitted")
		}
		if res.Remaining != want {
			t.Errorf("Remaining = %d, want %d", res.Remaining, want)
		}
	}
}

func TestLimiter_UnboundedRecordsNoState(t *testing.T) {
	t.Parallel()

	l := New(0)
	now := time.Now()

	for i := 0; i < 1000; i++ {
		if res := l.Allow(now); !res.Allowed {
			t.Fatal("unbounded limiter must always admit")
		}
	}
	if l.Size() != 0 {
		t.Errorf("unbounded limiter recorded %d timestamps, want 0", l.Size())
	}
}

func TestLimiter_PrunesOldTimestamps(t *testing.T) {
	t.Parallel()

	l := New(100)
	start := time.Now()

	for i := 0; i < 50; i++ {
		l.Allow(start)
	}
	l.Allow(start.Add(2 * time.Second))
	if got := l.Size(); got != 1 {
		t.Errorf("Size() = %d after pruning, want 1", got)
	}
}

func TestLimiter_ConcurrentAdmissionNeverExceedsMax(t *testing.T) {
	t.Parallel()

	const max = 10
	l := New(max)
	now := time.Now()

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := l.Allow(now); res.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != max {
		t.Errorf("admitted %d concurrent requests, want exactly %d", admitted, max)
	}
}
