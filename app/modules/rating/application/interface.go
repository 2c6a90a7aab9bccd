package ratingservice

import (
	"context"

	ratingdomain "github.com/FAForever/rating-server/app/modules/rating/domain"
	ratingdb "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories"
)

// Service rates one finished match end to end: fetch priors, run the
// calculator, persist, publish. Called only by the worker queue's single
// consumer, one job at a time.
type Service interface {
	RateGame(ctx context.Context, job ratingdomain.RatingJob, leaderboard, global *ratingdb.Leaderboard) error
}

// PlayerRatingCallback is invoked synchronously for every rated player so a
// connected-player registry can update its in-process copy of the rating
// without re-querying storage.
type PlayerRatingCallback func(playerID ratingdomain.PlayerID, ratingType ratingdomain.RatingType, rating ratingdomain.Rating)
