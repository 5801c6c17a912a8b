package quip

import (
	"sync"
	"testing"
	"time"
)

// TestThrottleExtendMonotone verifies that the shared deadline never moves
// backwards.
func TestThrottleExtendMonotone(t *testing.T) {
	t.Parallel()

	th := NewThrottle()
	base := time.Now().Truncate(time.Millisecond)

	t.Run("zero until initially", func(t *testing.T) {
		if !th.Until().IsZero() {
			t.Errorf("expected zero deadline, got %v", th.Until())
		}
	})

	t.Run("later deadline is published", func(t *testing.T) {
		later := base.Add(2 * time.Minute)
		got := th.Extend(later)
		if !got.Equal(later) {
			t.Errorf("expected %v, got %v", later, got)
		}
		if !th.Until().Equal(later) {
			t.Errorf("expected published deadline %v, got %v", later, th.Until())
		}
	})

	t.Run("earlier deadline is ignored", func(t *testing.T) {
		published := th.Until()
		earlier := base.Add(30 * time.Second)
		got := th.Extend(earlier)
		if !got.Equal(published) {
			t.Errorf("expected existing deadline %v, got %v", published, got)
		}
		if !th.Until().Equal(published) {
			t.Errorf("deadline regressed to %v", th.Until())
		}
	})
}

// TestThrottleConcurrentConvergence simulates N in-flight calls observing
// 429 responses with increasing reset deadlines. All callers must converge
// on the single latest deadline.
func TestThrottleConcurrentConvergence(t *testing.T) {
	t.Parallel()

	th := NewThrottle()
	base := time.Now().Truncate(time.Millisecond)
	const callers = 50

	latest := base.Add(time.Duration(callers) * time.Second)

	var wg sync.WaitGroup
	for i := 1; i <= callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.Extend(base.Add(time.Duration(i) * time.Second))
		}()
	}
	wg.Wait()

	if !th.Until().Equal(latest) {
		t.Errorf("expected convergence on %v, got %v", latest, th.Until())
	}

	// Every later observer now sees the converged deadline.
	for i := 1; i <= callers; i++ {
		got := th.Extend(base.Add(time.Duration(i) * time.Second))
		if !got.Equal(latest) {
			t.Fatalf("caller observed %v, expected %v", got, latest)
		}
	}
}
