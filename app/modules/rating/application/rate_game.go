package ratingservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	ratingdomain "github.com/FAForever/rating-server/app/modules/rating/domain"
	ratingevents "github.com/FAForever/rating-server/app/modules/rating/events"
	ratingdb "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories"
	"github.com/FAForever/rating-server/internal/observability/attr"
	"github.com/FAForever/rating-server/internal/observability/metrics"
)

// RateGame rates one finished match on its leaderboard and, for specialized
// leaderboards, runs a second adjustment pass against the global leaderboard
// so that ladder play still moves a player's general skill estimate. The
// second pass never touches the legacy per-game stats row.
func (s *RatingService) RateGame(ctx context.Context, job ratingdomain.RatingJob, leaderboard, global *ratingdb.Leaderboard) error {
	ctx, span := s.tracer.Start(ctx, "RateGame", trace.WithAttributes(
		attribute.Int64("game_id", int64(job.GameID)),
		attribute.String("rating_type", string(job.RatingType)),
	))
	defer span.End()

	if len(job.Teams) != 2 {
		return newRatingError(fmt.Sprintf("expected exactly 2 teams, got %d", len(job.Teams)))
	}
	if leaderboard == nil {
		return newRatingError(fmt.Sprintf("unknown rating type %q", job.RatingType))
	}

	s.logger.InfoContext(ctx, "Rating game",
		attr.ExtractCorrelationID(ctx),
		attr.GameID("game_id", int64(job.GameID)),
		attr.String("rating_type", string(job.RatingType)),
	)

	if err := s.rateWithRetry(ctx, job, leaderboard, true); err != nil {
		span.RecordError(err)
		return err
	}

	if global != nil && global.ID != leaderboard.ID {
		if err := s.rateWithRetry(ctx, job, global, false); err != nil {
			span.RecordError(err)
			return fmt.Errorf("global adjustment pass: %w", err)
		}
	}
	return nil
}

// rateWithRetry runs one persistence pass, retrying transient storage
// faults with a small fixed budget. The retry is scoped to a single pass: a
// pass only has side effects once its transaction commits, so a committed
// pass is never replayed when a later one fails.
func (s *RatingService) rateWithRetry(ctx context.Context, job ratingdomain.RatingJob, leaderboard *ratingdb.Leaderboard, updateStats bool) error {
	for attempt := 0; ; attempt++ {
		err := s.ratePass(ctx, job, leaderboard, updateStats)
		if err == nil {
			return nil
		}
		if !s.isTransient(err) || attempt >= s.retryBudget {
			return err
		}
		s.metrics.JobsTotal.WithLabelValues(metrics.ResultRetried).Inc()
		s.logger.WarnContext(ctx, "Transient storage fault, retrying rating pass",
			attr.ExtractCorrelationID(ctx),
			attr.GameID("game_id", int64(job.GameID)),
			attr.String("leaderboard", leaderboard.TechnicalName),
			attr.Int("attempt", attempt+1),
			attr.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
}

// ratePass performs one full rate-and-persist cycle against a single
// leaderboard. The current rating update and the journal insert commit in
// one transaction; the legacy stats row is written best-effort outside it.
func (s *RatingService) ratePass(ctx context.Context, job ratingdomain.RatingJob, leaderboard *ratingdb.Leaderboard, updateStats bool) error {
	groups := make([]ratingdomain.RatingGroup, len(job.Teams))
	outcomes := make([]ratingdomain.GameOutcome, len(job.Teams))
	records := make(map[ratingdomain.PlayerID]*ratingdb.LeaderboardRating)
	priors := make(map[ratingdomain.PlayerID]ratingdomain.Rating)

	for i, team := range job.Teams {
		outcomes[i] = team.Outcome
		group := make(ratingdomain.RatingGroup, len(team.Players))
		for _, playerID := range team.Players {
			prior, record, err := s.fetchOrSeedRating(ctx, playerID, leaderboard)
			if err != nil {
				return err
			}
			group[playerID] = prior
			records[playerID] = record
			priors[playerID] = prior
		}
		groups[i] = group
	}

	newRatings, playerOutcomes, err := CalculateRatings(groups, outcomes)
	if err != nil {
		return err
	}

	players := sortedPlayerIDs(newRatings)

	err = s.runInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		for _, playerID := range players {
			before := priors[playerID]
			after := newRatings[playerID]

			record := &ratingdb.LeaderboardRating{
				PlayerID:      int64(playerID),
				LeaderboardID: leaderboard.ID,
				Mean:          after.Mean,
				Deviation:     after.Deviation,
				TotalGames:    1,
				WonGames:      0,
			}
			if existing := records[playerID]; existing != nil {
				record.TotalGames = existing.TotalGames + 1
				record.WonGames = existing.WonGames
			}
			if playerOutcomes[playerID] == ratingdomain.OutcomeVictory {
				record.WonGames++
			}
			if err := s.repo.UpsertRating(ctx, tx, record); err != nil {
				return err
			}

			entry := &ratingdb.RatingJournalEntry{
				GameID:          int64(job.GameID),
				PlayerID:        int64(playerID),
				LeaderboardID:   leaderboard.ID,
				MeanBefore:      before.Mean,
				DeviationBefore: before.Deviation,
				MeanAfter:       after.Mean,
				DeviationAfter:  after.Deviation,
			}
			if err := s.repo.InsertJournalEntry(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if updateStats {
		s.updateLegacyStats(ctx, job, priors, newRatings, playerOutcomes, players)
	}

	for _, playerID := range players {
		before := priors[playerID]
		after := newRatings[playerID]
		s.publishRatingChange(ctx, job, leaderboard, playerID, before, after, playerOutcomes[playerID])
		if s.playerCallback != nil {
			s.playerCallback(playerID, ratingdomain.RatingType(leaderboard.TechnicalName), after)
		}
	}
	return nil
}

// updateLegacyStats writes the denormalized per-game-per-player row read by
// older reporting tooling. It is not authoritative: structural failures are
// logged and the job carries on.
func (s *RatingService) updateLegacyStats(
	ctx context.Context,
	job ratingdomain.RatingJob,
	priors map[ratingdomain.PlayerID]ratingdomain.Rating,
	newRatings map[ratingdomain.PlayerID]ratingdomain.Rating,
	playerOutcomes map[ratingdomain.PlayerID]ratingdomain.GameOutcome,
	players []ratingdomain.PlayerID,
) {
	for _, playerID := range players {
		before := priors[playerID]
		after := newRatings[playerID]
		stats := &ratingdb.GamePlayerStats{
			GameID:         int64(job.GameID),
			PlayerID:       int64(playerID),
			Mean:           before.Mean,
			Deviation:      before.Deviation,
			AfterMean:      &after.Mean,
			AfterDeviation: &after.Deviation,
			Result:         playerOutcomes[playerID].String(),
		}
		if err := s.repo.UpdateGamePlayerStats(ctx, nil, stats); err != nil {
			s.logger.WarnContext(ctx, "Failed to update legacy game player stats",
				attr.ExtractCorrelationID(ctx),
				attr.GameID("game_id", int64(job.GameID)),
				attr.PlayerID("player_id", int64(playerID)),
				attr.Error(err),
			)
		}
	}
}

func (s *RatingService) publishRatingChange(
	ctx context.Context,
	job ratingdomain.RatingJob,
	leaderboard *ratingdb.Leaderboard,
	playerID ratingdomain.PlayerID,
	before, after ratingdomain.Rating,
	outcome ratingdomain.GameOutcome,
) {
	payload := ratingevents.RatingUpdatePayload{
		GameID:       int64(job.GameID),
		PlayerID:     int64(playerID),
		RatingType:   leaderboard.TechnicalName,
		OldMean:      before.Mean,
		OldDeviation: before.Deviation,
		NewMean:      after.Mean,
		NewDeviation: after.Deviation,
		Outcome:      outcome.String(),
	}
	if err := s.eventBus.Publish(ctx, ratingevents.RatingUpdateTopic, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish rating change event",
			attr.ExtractCorrelationID(ctx),
			attr.PlayerID("player_id", int64(playerID)),
			attr.Error(err),
		)
		return
	}
	s.metrics.EventsTotal.Inc()
}

// fetchOrSeedRating returns the player's prior rating on the leaderboard.
// Players with no record are bootstrapped from the leaderboard's
// initializer, falling back to the flat default prior.
func (s *RatingService) fetchOrSeedRating(
	ctx context.Context,
	playerID ratingdomain.PlayerID,
	leaderboard *ratingdb.Leaderboard,
) (ratingdomain.Rating, *ratingdb.LeaderboardRating, error) {
	record, err := s.repo.GetRating(ctx, nil, int64(playerID), leaderboard.ID)
	if err == nil {
		return ratingdomain.Rating{Mean: record.Mean, Deviation: record.Deviation}, record, nil
	}
	if !errors.Is(err, ratingdb.ErrRatingNotFound) {
		return ratingdomain.Rating{}, nil, err
	}

	if leaderboard.InitializerID != nil {
		seed, err := s.repo.GetRating(ctx, nil, int64(playerID), *leaderboard.InitializerID)
		if err == nil {
			return ratingdomain.Rating{Mean: seed.Mean, Deviation: seed.Deviation}, nil, nil
		}
		if !errors.Is(err, ratingdb.ErrRatingNotFound) {
			return ratingdomain.Rating{}, nil, err
		}
	}
	return s.initialRating(), nil, nil
}

func (s *RatingService) initialRating() ratingdomain.Rating {
	return ratingdomain.Rating{Mean: s.initialMean, Deviation: s.initialDeviation}
}

func sortedPlayerIDs(ratings map[ratingdomain.PlayerID]ratingdomain.Rating) []ratingdomain.PlayerID {
	ids := make([]ratingdomain.PlayerID, 0, len(ratings))
	for id := range ratings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
