package services

import (
	"sync"
	"testing"
	"time"
)

func TestRemaining(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		limitSeconds int
		elapsed      time.Duration
		want         int
	}{
		{name: "just started", limitSeconds: 300, elapsed: 0, want: 300},
		{name: "reload mid attempt", limitSeconds: 300, elapsed: 30 * time.Second, want: 270},
		{name: "one second left", limitSeconds: 300, elapsed: 299 * time.Second, want: 1},
		{name: "exactly at limit", limitSeconds: 300, elapsed: 300 * time.Second, want: 0},
		{name: "past limit clamps to zero", limitSeconds: 300, elapsed: 10 * time.Minute, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Remaining(start, tt.limitSeconds, start.Add(tt.elapsed))
			if got != tt.want {
				t.Errorf("Remaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRemaining_Monotonic(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	prev := Remaining(start, 600, start)
	for elapsed := time.Second; elapsed <= 11*time.Minute; elapsed += 7 * time.Second {
		got := Remaining(start, 600, start.Add(elapsed))
		if got > prev {
			t.Fatalf("remaining increased from %d to %d at elapsed %v", prev, got, elapsed)
		}
		if got < 0 {
			t.Fatalf("remaining went negative: %d at elapsed %v", got, elapsed)
		}
		prev = got
	}
}

func TestTimerStateOf(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	limit := 5 // minutes

	tests := []struct {
		name         string
		limitMinutes *int
		now          time.Time
		want         TimerState
	}{
		{name: "no limit is unbounded", limitMinutes: nil, now: start.Add(24 * time.Hour), want: TimerUnbounded},
		{name: "within limit is counting", limitMinutes: &limit, now: start.Add(2 * time.Minute), want: TimerCounting},
		{name: "at limit is expired", limitMinutes: &limit, now: start.Add(5 * time.Minute), want: TimerExpired},
		{name: "past limit is expired", limitMinutes: &limit, now: start.Add(time.Hour), want: TimerExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimerStateOf(start, tt.limitMinutes, tt.now)
			if got != tt.want {
				t.Errorf("TimerStateOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAttemptDeadline(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	if got := AttemptDeadline(start, nil); got != nil {
		t.Errorf("expected nil deadline for unbounded attempt, got %v", got)
	}

	limit := 30
	deadline := AttemptDeadline(start, &limit)
	if deadline == nil {
		t.Fatal("expected deadline, got nil")
	}
	if want := start.Add(30 * time.Minute); !deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", deadline, want)
	}
}

func TestAttemptTimer_ExpiresExactlyOnce(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	current := start

	var mu sync.Mutex
	fired := 0
	timer := NewAttemptTimer(start, 60, func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	// Before expiry a tick does nothing
	timer.Tick()
	if fired != 0 {
		t.Fatalf("timer fired %d times before expiry", fired)
	}
	if got := timer.State(); got != TimerCounting {
		t.Errorf("State() = %s, want %s", got, TimerCounting)
	}

	// Advance past the limit; racing ticks must fire once
	mu.Lock()
	current = start.Add(61 * time.Second)
	mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer.Tick()
		}()
	}
	wg.Wait()

	mu.Lock()
	got := fired
	mu.Unlock()
	if got != 1 {
		t.Errorf("timer fired %d times, want exactly 1", got)
	}
	if state := timer.State(); state != TimerExpired {
		t.Errorf("State() = %s, want %s", state, TimerExpired)
	}
}

func TestAttemptTimer_StopPreventsLateFire(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	current := start

	fired := 0
	timer := NewAttemptTimer(start, 60, func() time.Time { return current }, func() { fired++ })

	// Manual submission stops the timer before the deadline
	timer.Stop()

	current = start.Add(2 * time.Minute)
	timer.Tick()

	if fired != 0 {
		t.Errorf("stopped timer fired %d times", fired)
	}
}

func TestAttemptTimer_RemainingResumesFromClock(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	current := start.Add(30 * time.Second)

	// A timer rebuilt after a reload recomputes from the start time, it
	// does not restart the countdown
	timer := NewAttemptTimer(start, 300, func() time.Time { return current }, nil)

	if got := timer.Remaining(); got != 270 {
		t.Errorf("Remaining() = %d, want 270", got)
	}
}
