package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/edupulse/attempt-service/internal/repositories"
)

// TimerState describes where an attempt's countdown stands.
type TimerState string

const (
	// TimerUnbounded means the exam has no time limit.
	TimerUnbounded TimerState = "unbounded"
	// TimerCounting means the limit is set and time remains.
	TimerCounting TimerState = "counting"
	// TimerExpired is terminal: remaining hit zero.
	TimerExpired TimerState = "expired"
)

// Remaining computes the seconds left on an attempt from wall-clock time,
// never from accumulated ticks, so a reload mid-attempt resumes with the
// correct value. The result is floored at zero.
func Remaining(startedAt time.Time, limitSeconds int, now time.Time) int {
	elapsed := int(now.Sub(startedAt).Seconds())
	remaining := limitSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TimerStateOf derives the countdown state. limitMinutes nil means
// unbounded.
func TimerStateOf(startedAt time.Time, limitMinutes *int, now time.Time) TimerState {
	if limitMinutes == nil {
		return TimerUnbounded
	}
	if Remaining(startedAt, *limitMinutes*60, now) > 0 {
		return TimerCounting
	}
	return TimerExpired
}

// AttemptDeadline returns startedAt plus the limit, nil when unbounded.
func AttemptDeadline(startedAt time.Time, limitMinutes *int) *time.Time {
	if limitMinutes == nil {
		return nil
	}
	d := startedAt.Add(time.Duration(*limitMinutes) * time.Minute)
	return &d
}

// AttemptTimer drives one attempt's countdown: it ticks once per second
// while counting and fires onExpire exactly once when remaining reaches
// zero. Stop cancels the tick loop; stopping after expiry is a no-op, and
// overlapping ticks can never fire onExpire twice.
type AttemptTimer struct {
	startedAt    time.Time
	limitSeconds int
	now          func() time.Time

	onExpire func()

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool
	fired   bool
}

// NewAttemptTimer builds a timer for a bounded attempt. The now function is
// injectable for tests; pass nil for wall clock.
func NewAttemptTimer(startedAt time.Time, limitSeconds int, now func() time.Time, onExpire func()) *AttemptTimer {
	if now == nil {
		now = time.Now
	}
	return &AttemptTimer{
		startedAt:    startedAt,
		limitSeconds: limitSeconds,
		now:          now,
		onExpire:     onExpire,
		stopCh:       make(chan struct{}),
	}
}

// Remaining reports the current seconds left.
func (t *AttemptTimer) Remaining() int {
	return Remaining(t.startedAt, t.limitSeconds, t.now())
}

// State reports the current countdown state.
func (t *AttemptTimer) State() TimerState {
	t.mu.Lock()
	fired := t.fired
	t.mu.Unlock()
	if fired || t.Remaining() == 0 {
		return TimerExpired
	}
	return TimerCounting
}

// Start runs the tick loop until expiry or Stop. It returns immediately;
// ticking happens on its own goroutine.
func (t *AttemptTimer) Start() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				if t.Remaining() == 0 {
					t.Tick()
					return
				}
			}
		}
	}()
}

// Tick checks for expiry once. It is exported so tests and external
// schedulers can drive the timer without the internal goroutine. The fired
// guard makes expiry idempotent under racing ticks.
func (t *AttemptTimer) Tick() {
	if t.Remaining() > 0 {
		return
	}

	t.mu.Lock()
	if t.fired || t.stopped {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire()
	}
}

// Stop cancels the countdown, e.g. after a manual submission, so a late
// tick cannot fire against an already submitted attempt.
func (t *AttemptTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	close(t.stopCh)
}

// TimeoutSweeper is the server-side safety net behind the client countdown:
// it periodically force-submits in-progress attempts whose deadline plus
// grace has passed, so a vanished client cannot keep an attempt open.
type TimeoutSweeper struct {
	repo       repositories.Repository
	submission SubmissionService
	logger     *slog.Logger
	grace      time.Duration
	interval   time.Duration
}

func NewTimeoutSweeper(repo repositories.Repository, submission SubmissionService, logger *slog.Logger, grace, interval time.Duration) *TimeoutSweeper {
	return &TimeoutSweeper{
		repo:       repo,
		submission: submission,
		logger:     logger,
		grace:      grace,
		interval:   interval,
	}
}

// Run loops until ctx is cancelled.
func (s *TimeoutSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over expired attempts.
func (s *TimeoutSweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.grace)
	attempts, err := s.repo.Attempt().GetExpiredAttempts(ctx, nil, cutoff)
	if err != nil {
		s.logger.Error("timeout sweep failed", "error", err)
		return
	}

	for _, attempt := range attempts {
		if _, err := s.submission.SubmitExpired(ctx, attempt.ID); err != nil {
			s.logger.Error("failed to close expired attempt",
				"attempt_id", attempt.ID,
				"error", err)
			continue
		}
		s.logger.Info("closed expired attempt",
			"attempt_id", attempt.ID,
			"exam_id", attempt.ExamID,
			"student_id", attempt.StudentID)
	}
}
