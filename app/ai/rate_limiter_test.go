package ai

import (
	"testing"
	"time"
)

func TestRateLimiter_Wait_FirstCallDoesNotBlock(t *testing.T) {
	limiter := NewRateLimiter()

	start := time.Now()
	limiter.Wait()

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("First Wait should not block, took %v", elapsed)
	}
}

func TestRateLimiter_Wait_EnforcesMinimumInterval(t *testing.T) {
	limiter := &RateLimiter{minInterval: 50 * time.Millisecond}

	limiter.Touch()

	start := time.Now()
	limiter.Wait()
	elapsed := time.Since(start)

	if elapsed < 40*time.Millisecond {
		t.Errorf("Expected Wait to sleep close to the interval, slept %v", elapsed)
	}
}

func TestRateLimiter_Wait_NoSleepAfterIntervalPassed(t *testing.T) {
	limiter := &RateLimiter{minInterval: 10 * time.Millisecond}

	limiter.Touch()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	limiter.Wait()

	if elapsed := time.Since(start); elapsed > 5*time.Millisecond {
		t.Errorf("Wait should return immediately once the interval has passed, took %v", elapsed)
	}
}
