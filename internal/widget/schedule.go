package widget

import (
	"math/rand"
	"time"
)

// Mode is the scheduler's pacing mode.
type Mode int

const (
	// ModeNormal paces displays with the mixed short/long distribution.
	ModeNormal Mode = iota
	// ModeBurst paces a short flurry of displays close together.
	ModeBurst
)

const (
	// burstDisplayCount is how many displays a burst lasts before the
	// scheduler reverts to normal pacing.
	burstDisplayCount = 2

	// displayDuration is how long each toast stays on screen.
	displayDuration = 5 * time.Second

	// exitDelay keeps a removed toast's slot occupied briefly while it
	// animates out, before the stack re-settles.
	exitDelay = 500 * time.Millisecond
)

// nextDelay returns the wait before the next display. Normal mode flips a
// coin between a short gap of 0.5–5s and a long gap of 5–15s, so activity
// reads as organic rather than metronomic. Burst mode always waits 2–5s.
func nextDelay(mode Mode, rng *rand.Rand) time.Duration {
	if mode == ModeBurst {
		return durationBetween(2*time.Second, 5*time.Second, rng)
	}
	if rng.Intn(2) == 0 {
		return durationBetween(500*time.Millisecond, 5*time.Second, rng)
	}
	return durationBetween(5*time.Second, 15*time.Second, rng)
}

// burstInterval returns the wait before the next burst: 3 minutes with up to
// 2 minutes of jitter either way.
func burstInterval(rng *rand.Rand) time.Duration {
	const base = 3 * time.Minute
	const jitter = 2 * time.Minute
	offset := time.Duration(rng.Int63n(int64(2*jitter))) - jitter
	return base + offset
}

// pickFallbackEvent returns a uniform random index in [0, n), re-rolling once
// per draw to avoid repeating lastIndex when more than one event exists.
func pickFallbackEvent(n, lastIndex int, rng *rand.Rand) int {
	if n <= 0 {
		return -1
	}
	idx := rng.Intn(n)
	for n >= 2 && idx == lastIndex {
		idx = rng.Intn(n)
	}
	return idx
}

// durationBetween returns a uniform random duration in [min, max).
func durationBetween(min, max time.Duration, rng *rand.Rand) time.Duration {
	return min + time.Duration(rng.Int63n(int64(max-min)))
}
