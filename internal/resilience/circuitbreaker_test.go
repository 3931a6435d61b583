package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing() error    { return errBoom }
func succeeding() error { return nil }

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "t", MaxFailures: 3, ResetTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d err = %v, want errBoom", i, err)
		}
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}
	if err := cb.Execute(succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_SuccessResetsFailStreak(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 3, ResetTimeout: time.Hour})

	cb.Execute(failing)
	cb.Execute(failing)
	cb.Execute(succeeding)
	cb.Execute(failing)
	cb.Execute(failing)

	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed (streak was interrupted)", got)
	}
}

func TestBreaker_HalfOpenClosesAfterProbes(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Millisecond,
		HalfOpenMax:  2,
	})

	cb.Execute(failing)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}
	time.Sleep(5 * time.Millisecond)
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after reset timeout", got)
	}

	for i := 0; i < 2; i++ {
		if err := cb.Execute(succeeding); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed after successful probes", got)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Millisecond,
		HalfOpenMax:  3,
	})

	cb.Execute(failing)
	time.Sleep(5 * time.Millisecond)

	if err := cb.Execute(failing); !errors.Is(err, errBoom) {
		t.Fatalf("probe err = %v", err)
	}
	if err := cb.Execute(succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen after failed probe", err)
	}
}

func TestBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
	cb.Execute(failing)
	cb.Reset()
	if err := cb.Execute(succeeding); err != nil {
		t.Fatalf("err after reset = %v", err)
	}
}
