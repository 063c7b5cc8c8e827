package httpapi

import (
	"sync"
	"testing"
	"time"
)

func TestRateLimiterDisabledAllowsAll(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !rl.Allow("ip") {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	rl := NewRateLimiter(60, 3)

	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.Allow("ip") {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want burst of 3", allowed)
	}
	// A different key has its own bucket.
	if !rl.Allow("other-ip") {
		t.Fatal("separate key should not share the exhausted bucket")
	}
}

func TestRateLimiterConcurrentAllowAndCleanup(t *testing.T) {
	rl := NewRateLimiter(60000, 1000)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				rl.Allow("shared")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			rl.cleanup(time.Now().Add(-10 * time.Minute))
		}
	}()
	wg.Wait()

	// Recently seen entries survive cleanup.
	if _, ok := rl.limiters.Load("shared"); !ok {
		t.Fatal("active entry was evicted")
	}
	rl.cleanup(time.Now().Add(time.Minute))
	if _, ok := rl.limiters.Load("shared"); ok {
		t.Fatal("stale entry survived cleanup")
	}
}
