package ratingservice

import (
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

// RatingError reports a job the calculator cannot rate: a non-two-team
// summary or fully ambiguous outcomes. Never retried; the match is left
// unrated.
type RatingError struct {
	Reason string
}

func (e *RatingError) Error() string {
	return "rating failed: " + e.Reason
}

func newRatingError(reason string) *RatingError {
	return &RatingError{Reason: reason}
}

// IsTransientStorageError reports whether err is a lock/deadlock class
// Postgres fault. The worker retries these with a small fixed budget before
// dropping the job; rating records may be touched concurrently by
// administrative tooling, so writes stay row-scoped and retryable.
func IsTransientStorageError(err error) bool {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Field('C') {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"55P03": // lock_not_available
		return true
	}
	return false
}
