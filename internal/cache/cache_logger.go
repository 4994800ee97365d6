package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a cache pattern, logging failures
// instead of propagating them.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes cache keys, logging failures instead of propagating
// them.
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateAttemptCache drops every cache entry touching an attempt after
// an answer save, flag toggle or submission.
func InvalidateAttemptCache(ctx context.Context, cm *CacheManager, attemptID, examID uint, studentID string) {
	SafeDelete(ctx, cm.Attempt,
		fmt.Sprintf("id:%d", attemptID),
		fmt.Sprintf("details:%d", attemptID))

	SafeInvalidatePattern(ctx, cm.Attempt, fmt.Sprintf("student:%s:*", studentID))
	SafeInvalidatePattern(ctx, cm.Attempt, fmt.Sprintf("exam:%d:*", examID))
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("exam:%d:*", examID))
}

// InvalidateExamCache drops exam and derived stats entries after an exam
// changes.
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID uint) {
	SafeDelete(ctx, cm.Exam,
		fmt.Sprintf("id:%d", examID),
		fmt.Sprintf("details:%d", examID))

	SafeInvalidatePattern(ctx, cm.Exam, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, fmt.Sprintf("exam:%d:*", examID))
}
