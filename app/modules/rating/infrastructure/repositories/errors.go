package ratingdb

import "errors"

var (
	// ErrRatingNotFound is returned when a player has no rating record on
	// the requested leaderboard yet.
	ErrRatingNotFound = errors.New("rating record not found")

	// ErrLeaderboardNotFound is returned for an unknown rating type.
	ErrLeaderboardNotFound = errors.New("leaderboard not found")
)
