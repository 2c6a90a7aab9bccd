package ratingservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	ratingdomain "github.com/FAForever/rating-server/app/modules/rating/domain"
	ratingevents "github.com/FAForever/rating-server/app/modules/rating/events"
	ratingdb "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories"
	"github.com/FAForever/rating-server/internal/observability/metrics"
)

var (
	globalLeaderboard = &ratingdb.Leaderboard{ID: 1, TechnicalName: "global"}
	ladderLeaderboard = func() *ratingdb.Leaderboard {
		init := 1
		return &ratingdb.Leaderboard{ID: 2, TechnicalName: "ladder_1v1", InitializerID: &init}
	}()
)

func newTestService(repo *FakeRepository, bus *FakeEventBus, callback PlayerRatingCallback) *RatingService {
	return newTestServiceWithOptions(repo, bus, callback, Options{})
}

func newTestServiceWithOptions(repo *FakeRepository, bus *FakeEventBus, callback PlayerRatingCallback, opts Options) *RatingService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	return NewRatingService(repo, nil, bus, logger, metrics.NewNopRatingMetrics(), tracer, callback, opts)
}

func twoPlayerJob(ratingType ratingdomain.RatingType) ratingdomain.RatingJob {
	return ratingdomain.RatingJob{
		GameID:     42,
		RatingType: ratingType,
		Teams: []ratingdomain.TeamSummary{
			{Outcome: ratingdomain.OutcomeVictory, Players: []ratingdomain.PlayerID{1}},
			{Outcome: ratingdomain.OutcomeDefeat, Players: []ratingdomain.PlayerID{2}},
		},
	}
}

func TestRateGame_GlobalTwoPlayerMatch(t *testing.T) {
	repo := NewFakeRepository()
	bus := &FakeEventBus{}
	callbacks := make(map[ratingdomain.PlayerID]ratingdomain.Rating)
	service := newTestService(repo, bus, func(id ratingdomain.PlayerID, _ ratingdomain.RatingType, r ratingdomain.Rating) {
		callbacks[id] = r
	})

	err := service.RateGame(context.Background(), twoPlayerJob(ratingdomain.RatingTypeGlobal), globalLeaderboard, globalLeaderboard)
	require.NoError(t, err)

	// Current rating records: winner above the default prior, loser below,
	// game and win counters advanced.
	winner, ok := repo.RatingFor(1, globalLeaderboard.ID)
	require.True(t, ok)
	loser, ok := repo.RatingFor(2, globalLeaderboard.ID)
	require.True(t, ok)
	assert.Greater(t, winner.Mean, DefaultMean)
	assert.Less(t, loser.Mean, DefaultMean)
	assert.Equal(t, 1, winner.TotalGames)
	assert.Equal(t, 1, winner.WonGames)
	assert.Equal(t, 1, loser.TotalGames)
	assert.Equal(t, 0, loser.WonGames)

	// Exactly one journal row per player, capturing before and after, and
	// the journal "after" matches the current record.
	require.Len(t, repo.Journal, 2)
	for _, entry := range repo.Journal {
		assert.Equal(t, int64(42), entry.GameID)
		assert.Equal(t, DefaultMean, entry.MeanBefore)
		assert.Equal(t, DefaultDeviation, entry.DeviationBefore)
		current, ok := repo.RatingFor(entry.PlayerID, entry.LeaderboardID)
		require.True(t, ok)
		assert.Equal(t, current.Mean, entry.MeanAfter)
		assert.Equal(t, current.Deviation, entry.DeviationAfter)
	}

	// Reading the journal back gives the same picture: the current record
	// always equals the latest entry's "after" value.
	entries, err := repo.GetJournalEntries(context.Background(), nil, 1, globalLeaderboard.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, winner.Mean, entries[0].MeanAfter)
	assert.Equal(t, winner.Deviation, entries[0].DeviationAfter)

	// Legacy stats row per player.
	require.Len(t, repo.Stats, 2)

	// One rating-change event per player with the resolved outcome.
	events := bus.Events()
	require.Len(t, events, 2)
	outcomes := make(map[int64]string)
	for _, e := range events {
		assert.Equal(t, ratingevents.RatingUpdateTopic, e.Topic)
		payload, ok := e.Payload.(ratingevents.RatingUpdatePayload)
		require.True(t, ok)
		outcomes[payload.PlayerID] = payload.Outcome
	}
	assert.Equal(t, map[int64]string{1: "VICTORY", 2: "DEFEAT"}, outcomes)

	// Live player cache callback per player.
	require.Len(t, callbacks, 2)
	assert.Equal(t, winner.Mean, callbacks[1].Mean)
	assert.Equal(t, loser.Mean, callbacks[2].Mean)
}

func TestRateGame_LadderRunsGlobalAdjustmentPass(t *testing.T) {
	repo := NewFakeRepository()
	bus := &FakeEventBus{}
	service := newTestService(repo, bus, nil)

	err := service.RateGame(context.Background(), twoPlayerJob(ratingdomain.RatingTypeLadder), ladderLeaderboard, globalLeaderboard)
	require.NoError(t, err)

	// Both leaderboards got a current record per player.
	for _, playerID := range []int64{1, 2} {
		_, ok := repo.RatingFor(playerID, ladderLeaderboard.ID)
		assert.True(t, ok)
		_, ok = repo.RatingFor(playerID, globalLeaderboard.ID)
		assert.True(t, ok)
	}

	// Journal rows for both passes, legacy stats only for the primary one.
	assert.Len(t, repo.Journal, 4)
	assert.Len(t, repo.Stats, 2)

	// Events for both passes.
	assert.Len(t, bus.Events(), 4)
}

func TestRateGame_BootstrapsFromInitializerLeaderboard(t *testing.T) {
	repo := NewFakeRepository()
	repo.SeedRating(ratingdb.LeaderboardRating{
		PlayerID:      1,
		LeaderboardID: globalLeaderboard.ID,
		Mean:          2000,
		Deviation:     100,
		TotalGames:    50,
	})
	bus := &FakeEventBus{}
	service := newTestService(repo, bus, nil)

	job := twoPlayerJob(ratingdomain.RatingTypeLadder)
	err := service.ratePass(context.Background(), job, ladderLeaderboard, true)
	require.NoError(t, err)

	// Player 1 had no ladder rating; the prior comes from global, not the
	// flat default, and the journal records that seeded prior.
	var entry ratingdb.RatingJournalEntry
	for _, e := range repo.Journal {
		if e.PlayerID == 1 && e.LeaderboardID == ladderLeaderboard.ID {
			entry = e
		}
	}
	assert.Equal(t, 2000.0, entry.MeanBefore)
	assert.Equal(t, 100.0, entry.DeviationBefore)

	// A fresh ladder record starts its own counters.
	rec, ok := repo.RatingFor(1, ladderLeaderboard.ID)
	require.True(t, ok)
	assert.Equal(t, 1, rec.TotalGames)
}

func TestRateGame_ExistingCountersAdvance(t *testing.T) {
	repo := NewFakeRepository()
	repo.SeedRating(ratingdb.LeaderboardRating{
		PlayerID:      1,
		LeaderboardID: globalLeaderboard.ID,
		Mean:          1600,
		Deviation:     200,
		TotalGames:    10,
		WonGames:      6,
	})
	bus := &FakeEventBus{}
	service := newTestService(repo, bus, nil)

	err := service.RateGame(context.Background(), twoPlayerJob(ratingdomain.RatingTypeGlobal), globalLeaderboard, globalLeaderboard)
	require.NoError(t, err)

	rec, ok := repo.RatingFor(1, globalLeaderboard.ID)
	require.True(t, ok)
	assert.Equal(t, 11, rec.TotalGames)
	assert.Equal(t, 7, rec.WonGames)
	assert.Greater(t, rec.Mean, 1600.0)
}

func TestRateGame_LegacyStatsFailureIsNotFatal(t *testing.T) {
	repo := NewFakeRepository()
	repo.UpdateGamePlayerStatsFunc = func(context.Context, *ratingdb.GamePlayerStats) error {
		return errors.New("legacy table is broken")
	}
	bus := &FakeEventBus{}
	service := newTestService(repo, bus, nil)

	err := service.RateGame(context.Background(), twoPlayerJob(ratingdomain.RatingTypeGlobal), globalLeaderboard, globalLeaderboard)
	require.NoError(t, err)

	// Authoritative writes and events still happened.
	assert.Len(t, repo.Journal, 2)
	assert.Len(t, bus.Events(), 2)
}

func TestRateGame_RejectsMalformedJobs(t *testing.T) {
	repo := NewFakeRepository()
	bus := &FakeEventBus{}
	service := newTestService(repo, bus, nil)
	var ratingErr *RatingError

	// Wrong team count.
	job := ratingdomain.RatingJob{
		GameID:     7,
		RatingType: ratingdomain.RatingTypeGlobal,
		Teams: []ratingdomain.TeamSummary{
			{Outcome: ratingdomain.OutcomeVictory, Players: []ratingdomain.PlayerID{1}},
		},
	}
	err := service.RateGame(context.Background(), job, globalLeaderboard, globalLeaderboard)
	require.ErrorAs(t, err, &ratingErr)

	// Unknown rating type.
	err = service.RateGame(context.Background(), twoPlayerJob("tmm_4v4"), nil, globalLeaderboard)
	require.ErrorAs(t, err, &ratingErr)

	// Ambiguous outcomes.
	ambiguous := twoPlayerJob(ratingdomain.RatingTypeGlobal)
	ambiguous.Teams[0].Outcome = ratingdomain.OutcomeUnknown
	ambiguous.Teams[1].Outcome = ratingdomain.OutcomeUnknown
	err = service.RateGame(context.Background(), ambiguous, globalLeaderboard, globalLeaderboard)
	require.ErrorAs(t, err, &ratingErr)

	// Nothing was persisted or published for any of them.
	assert.Empty(t, repo.Journal)
	assert.Empty(t, bus.Events())
}

func TestRateGame_GlobalPassRetryDoesNotReplayPrimaryPass(t *testing.T) {
	transientErr := errors.New("deadlock detected")
	repo := NewFakeRepository()
	faultArmed := true
	repo.InsertJournalEntryFunc = func(_ context.Context, entry *ratingdb.RatingJournalEntry) error {
		if faultArmed && entry.LeaderboardID == globalLeaderboard.ID {
			faultArmed = false
			return transientErr
		}
		repo.Journal = append(repo.Journal, *entry)
		return nil
	}
	bus := &FakeEventBus{}
	service := newTestServiceWithOptions(repo, bus, nil, Options{
		RetryDelay:  time.Millisecond,
		IsTransient: func(err error) bool { return errors.Is(err, transientErr) },
	})

	err := service.RateGame(context.Background(), twoPlayerJob(ratingdomain.RatingTypeLadder), ladderLeaderboard, globalLeaderboard)
	require.NoError(t, err)

	// The fault hit the global adjustment pass after the ladder pass had
	// committed. Only the global pass may be retried: the ladder pass must
	// not have rated the match a second time.
	perLeaderboard := make(map[int]int)
	for _, entry := range repo.Journal {
		perLeaderboard[entry.LeaderboardID]++
	}
	assert.Equal(t, 2, perLeaderboard[ladderLeaderboard.ID])
	assert.Equal(t, 2, perLeaderboard[globalLeaderboard.ID])

	winner, ok := repo.RatingFor(1, ladderLeaderboard.ID)
	require.True(t, ok)
	assert.Equal(t, 1, winner.TotalGames)
	assert.Equal(t, 1, winner.WonGames)

	// One event per player per pass, no duplicates from the retry.
	assert.Len(t, bus.Events(), 4)
}

func TestRateGame_TransientFaultRetriesFailingPass(t *testing.T) {
	transientErr := errors.New("lock not available")
	repo := NewFakeRepository()
	var upsertCalls int
	repo.UpsertRatingFunc = func(_ context.Context, rec *ratingdb.LeaderboardRating) error {
		upsertCalls++
		if upsertCalls <= 2 {
			return transientErr
		}
		repo.SeedRating(*rec)
		return nil
	}
	bus := &FakeEventBus{}
	service := newTestServiceWithOptions(repo, bus, nil, Options{
		RetryDelay:  time.Millisecond,
		IsTransient: func(err error) bool { return errors.Is(err, transientErr) },
	})

	err := service.RateGame(context.Background(), twoPlayerJob(ratingdomain.RatingTypeGlobal), globalLeaderboard, globalLeaderboard)
	require.NoError(t, err)

	// Two aborted attempts, then one clean pass writing both players.
	assert.Equal(t, 4, upsertCalls)
	assert.Len(t, repo.Journal, 2)
	assert.Len(t, bus.Events(), 2)
}

func TestRateGame_RetryBudgetExhausted(t *testing.T) {
	transientErr := errors.New("deadlock detected")
	repo := NewFakeRepository()
	var attempts int
	repo.UpsertRatingFunc = func(context.Context, *ratingdb.LeaderboardRating) error {
		attempts++
		return transientErr
	}
	bus := &FakeEventBus{}
	service := newTestServiceWithOptions(repo, bus, nil, Options{
		RetryBudget: 2,
		RetryDelay:  time.Millisecond,
		IsTransient: func(err error) bool { return errors.Is(err, transientErr) },
	})

	err := service.RateGame(context.Background(), twoPlayerJob(ratingdomain.RatingTypeGlobal), globalLeaderboard, globalLeaderboard)
	require.ErrorIs(t, err, transientErr)
	assert.Equal(t, 3, attempts)
	assert.Empty(t, bus.Events())
}

func TestRateGame_StorageErrorAborts(t *testing.T) {
	repo := NewFakeRepository()
	storageErr := errors.New("connection reset")
	repo.GetRatingFunc = func(context.Context, int64, int) (*ratingdb.LeaderboardRating, error) {
		return nil, storageErr
	}
	bus := &FakeEventBus{}
	service := newTestService(repo, bus, nil)

	err := service.RateGame(context.Background(), twoPlayerJob(ratingdomain.RatingTypeGlobal), globalLeaderboard, globalLeaderboard)
	require.ErrorIs(t, err, storageErr)
	assert.Empty(t, bus.Events())
}
