package ratingdomain

// ResolutionError reports irreconcilable team outcome sets: both teams
// claiming victory, a unilateral draw, or ambiguous army outcomes. It always
// indicates a client bug or cheating; the match is simply not rated.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string {
	return "outcome resolution failed: " + e.Reason
}

func newResolutionError(reason string) *ResolutionError {
	return &ResolutionError{Reason: reason}
}
