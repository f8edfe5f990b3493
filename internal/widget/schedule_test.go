package widget

import (
	"math/rand"
	"testing"
	"time"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestNextDelay_NormalRange(t *testing.T) {
	rng := newTestRand()

	short, long := 0, 0
	for i := 0; i < 1000; i++ {
		d := nextDelay(ModeNormal, rng)
		if d < 500*time.Millisecond || d >= 15*time.Second {
			t.Fatalf("delay %v outside [0.5s, 15s)", d)
		}
		if d < 5*time.Second {
			short++
		} else {
			long++
		}
	}
	// Roughly half the draws land in each band.
	if short == 0 || long == 0 {
		t.Fatalf("expected both bands used, got short=%d long=%d", short, long)
	}
}

func TestNextDelay_BurstRange(t *testing.T) {
	rng := newTestRand()

	for i := 0; i < 1000; i++ {
		d := nextDelay(ModeBurst, rng)
		if d < 2*time.Second || d >= 5*time.Second {
			t.Fatalf("burst delay %v outside [2s, 5s)", d)
		}
	}
}

func TestBurstInterval_Range(t *testing.T) {
	rng := newTestRand()

	for i := 0; i < 1000; i++ {
		d := burstInterval(rng)
		if d < time.Minute || d >= 5*time.Minute {
			t.Fatalf("burst interval %v outside [1m, 5m)", d)
		}
	}
}

func TestPickFallbackEvent_NeverRepeatsLast(t *testing.T) {
	rng := newTestRand()

	for i := 0; i < 1000; i++ {
		idx := pickFallbackEvent(5, 2, rng)
		if idx < 0 || idx >= 5 {
			t.Fatalf("index %d out of range", idx)
		}
		if idx == 2 {
			t.Fatal("picked the previously shown event")
		}
	}
}

func TestPickFallbackEvent_SingleEventAlwaysShown(t *testing.T) {
	rng := newTestRand()

	for i := 0; i < 100; i++ {
		if idx := pickFallbackEvent(1, 0, rng); idx != 0 {
			t.Fatalf("expected 0, got %d", idx)
		}
	}
}

func TestPickFallbackEvent_Empty(t *testing.T) {
	if idx := pickFallbackEvent(0, -1, newTestRand()); idx != -1 {
		t.Fatalf("expected -1, got %d", idx)
	}
}

func TestPickFallbackEvent_CoversAllOthers(t *testing.T) {
	rng := newTestRand()

	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		seen[pickFallbackEvent(4, 1, rng)] = true
	}
	for _, want := range []int{0, 2, 3} {
		if !seen[want] {
			t.Fatalf("index %d never picked", want)
		}
	}
}
