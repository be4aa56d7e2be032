package backoff

import (
	"testing"
	"time"
)

func TestExponentialJitterBounded(t *testing.T) {
	base := time.Millisecond
	max := 20 * time.Millisecond
	for attempt := 1; attempt <= 10; attempt++ {
		d := ExponentialJitter(base, max, attempt)
		if d < 0 {
			t.Fatalf("attempt %d: got negative duration %v", attempt, d)
		}
		if d > max+max/5 {
			t.Fatalf("attempt %d: got %v, want <= max+jitter (%v)", attempt, d, max)
		}
	}
}

func TestExponentialJitterNormalizesNonPositiveAttempt(t *testing.T) {
	d := ExponentialJitter(time.Millisecond, 20*time.Millisecond, 0)
	if d < 0 {
		t.Fatalf("got negative duration %v", d)
	}
}
