package app

import (
	"context"
	"errors"
	"testing"
	"time"
)

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	waits := []time.Duration{}
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &waits
}

func TestBackoffDurationAndJitter(t *testing.T) {
	d := backoffDuration(2, 100*time.Millisecond, 300*time.Millisecond, 0)
	if d != 200*time.Millisecond {
		t.Fatalf("unexpected delay: %v", d)
	}
	d2 := backoffDuration(10, 100*time.Millisecond, 300*time.Millisecond, 0)
	if d2 != 300*time.Millisecond {
		t.Fatalf("expected capped delay, got %v", d2)
	}
	j := applyJitter(100*time.Millisecond, 0)
	if j != 100*time.Millisecond {
		t.Fatalf("jitter=0 mismatch: %v", j)
	}
	if j2 := applyJitter(100*time.Millisecond, 2); j2 <= 0 {
		t.Fatalf("jitter clamp mismatch: %v", j2)
	}
	if d3 := backoffDuration(0, 100*time.Millisecond, 300*time.Millisecond, 0.2); d3 <= 0 {
		t.Fatalf("attempt clamp mismatch: %v", d3)
	}
}

func TestWithExponentialBackoff(t *testing.T) {
	ctx := context.Background()
	attempts := 0
	err := withExponentialBackoff(ctx, retryOptions{MaxRetries: 0}, func(attempt int) error {
		attempts = attempt
		return nil
	})
	if err != nil || attempts != 1 {
		t.Fatalf("unexpected result err=%v attempts=%d", err, attempts)
	}

	attempts = 0
	err = withExponentialBackoff(ctx, retryOptions{MaxRetries: 0}, func(attempt int) error {
		attempts = attempt
		return errors.New("x")
	})
	if err == nil || attempts != 1 {
		t.Fatalf("expected immediate failure, err=%v attempts=%d", err, attempts)
	}
}

func TestWithExponentialBackoffOnRetry(t *testing.T) {
	waits := stubSleep(t)
	var (
		retryCalled bool
		attempts    int
	)
	err := withExponentialBackoff(context.Background(), retryOptions{
		MaxRetries: 2,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			retryCalled = true
			if wait <= 0 || err == nil {
				t.Fatalf("unexpected retry callback args")
			}
		},
	}, func(attempt int) error {
		attempts = attempt
		if attempt < 3 {
			return errors.New("x")
		}
		return nil
	})
	if err != nil || !retryCalled || attempts != 3 {
		t.Fatalf("unexpected retry result: err=%v retryCalled=%v attempts=%d", err, retryCalled, attempts)
	}
	if len(*waits) != 2 || (*waits)[0] != 100*time.Millisecond || (*waits)[1] != 200*time.Millisecond {
		t.Fatalf("unexpected waits: %v", *waits)
	}
}

func TestWithExponentialBackoffRateLimitBranch(t *testing.T) {
	waits := stubSleep(t)
	attempts := 0
	err := withExponentialBackoff(context.Background(), retryOptions{MaxRetries: 1}, func(attempt int) error {
		attempts = attempt
		if attempt == 1 {
			return errors.New("HTTP 429 rate limit")
		}
		return nil
	})
	if err != nil || attempts != 2 {
		t.Fatalf("expected eventual success, err=%v attempts=%d", err, attempts)
	}
	if len(*waits) != 1 || (*waits)[0] < 600*time.Millisecond {
		t.Fatalf("rate-limit branch should wait noticeably before retry: %v", *waits)
	}
}

func TestWithExponentialBackoffStopsOnCancel(t *testing.T) {
	stubSleep(t)
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := withExponentialBackoff(ctx, retryOptions{MaxRetries: 5}, func(attempt int) error {
		attempts = attempt
		cancel()
		return errors.New("unterbrochen")
	})
	if err == nil || attempts != 1 {
		t.Fatalf("expected stop after cancel, err=%v attempts=%d", err, attempts)
	}
}

func TestIsRateLimitError(t *testing.T) {
	if !isRateLimitError(errors.New("HTTP 429")) {
		t.Fatalf("expected true")
	}
	if !isRateLimitError(errors.New("RATE LIMIT")) {
		t.Fatalf("expected true")
	}
	if isRateLimitError(errors.New("bad")) {
		t.Fatalf("expected false")
	}
	if isRateLimitError(nil) {
		t.Fatalf("expected false")
	}
}

func TestRunStateString(t *testing.T) {
	want := map[RunState]string{StateIdle: "idle", StateRunning: "running", StateCompleted: "completed", StateFailed: "failed", RunState(9): "unknown"}
	for s, w := range want {
		if s.String() != w {
			t.Fatalf("%d => %s, want %s", s, s.String(), w)
		}
	}
}
