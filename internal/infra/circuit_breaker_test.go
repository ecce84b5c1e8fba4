package infra

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Hour,
	})

	if !cb.Allow() {
		t.Fatal("closed breaker should allow")
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.GetState() != StateClosed {
		t.Fatal("should still be closed below threshold")
	}

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatal("should open at threshold")
	}
	if cb.Allow() {
		t.Fatal("open breaker should reject")
	}
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatal("should be open")
	}

	time.Sleep(5 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("should allow after timeout (half-open)")
	}
	if cb.GetState() != StateHalfOpen {
		t.Fatal("should be half-open")
	}

	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Fatal("should close after success threshold")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.Allow() // transitions to half-open

	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatal("half-open failure should reopen")
	}
}
