package ratingservice

import (
	"context"
	"sync"

	"github.com/uptrace/bun"

	ratingdb "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories"
)

// ------------------------
// Fake rating repository
// ------------------------

type ratingKey struct {
	PlayerID      int64
	LeaderboardID int
}

// FakeRepository is a programmable in-memory stub for ratingdb.Repository.
type FakeRepository struct {
	mu    sync.Mutex
	trace []string

	Leaderboards []ratingdb.Leaderboard
	Ratings      map[ratingKey]ratingdb.LeaderboardRating
	Journal      []ratingdb.RatingJournalEntry
	Stats        []ratingdb.GamePlayerStats

	GetLeaderboardsFunc       func(ctx context.Context) ([]ratingdb.Leaderboard, error)
	GetRatingFunc             func(ctx context.Context, playerID int64, leaderboardID int) (*ratingdb.LeaderboardRating, error)
	UpsertRatingFunc          func(ctx context.Context, rec *ratingdb.LeaderboardRating) error
	InsertJournalEntryFunc    func(ctx context.Context, entry *ratingdb.RatingJournalEntry) error
	UpdateGamePlayerStatsFunc func(ctx context.Context, stats *ratingdb.GamePlayerStats) error
}

var _ ratingdb.Repository = (*FakeRepository)(nil)

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{
		Ratings: make(map[ratingKey]ratingdb.LeaderboardRating),
	}
}

func (f *FakeRepository) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of repository calls made so far.
func (f *FakeRepository) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeRepository) SeedRating(rec ratingdb.LeaderboardRating) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ratings[ratingKey{rec.PlayerID, rec.LeaderboardID}] = rec
}

func (f *FakeRepository) RatingFor(playerID int64, leaderboardID int) (ratingdb.LeaderboardRating, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.Ratings[ratingKey{playerID, leaderboardID}]
	return rec, ok
}

func (f *FakeRepository) GetLeaderboards(ctx context.Context, _ bun.IDB) ([]ratingdb.Leaderboard, error) {
	f.record("GetLeaderboards")
	if f.GetLeaderboardsFunc != nil {
		return f.GetLeaderboardsFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ratingdb.Leaderboard, len(f.Leaderboards))
	copy(out, f.Leaderboards)
	return out, nil
}

func (f *FakeRepository) GetRating(ctx context.Context, _ bun.IDB, playerID int64, leaderboardID int) (*ratingdb.LeaderboardRating, error) {
	f.record("GetRating")
	if f.GetRatingFunc != nil {
		return f.GetRatingFunc(ctx, playerID, leaderboardID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.Ratings[ratingKey{playerID, leaderboardID}]
	if !ok {
		return nil, ratingdb.ErrRatingNotFound
	}
	out := rec
	return &out, nil
}

func (f *FakeRepository) UpsertRating(ctx context.Context, _ bun.IDB, rec *ratingdb.LeaderboardRating) error {
	f.record("UpsertRating")
	if f.UpsertRatingFunc != nil {
		return f.UpsertRatingFunc(ctx, rec)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ratings[ratingKey{rec.PlayerID, rec.LeaderboardID}] = *rec
	return nil
}

func (f *FakeRepository) InsertJournalEntry(ctx context.Context, _ bun.IDB, entry *ratingdb.RatingJournalEntry) error {
	f.record("InsertJournalEntry")
	if f.InsertJournalEntryFunc != nil {
		return f.InsertJournalEntryFunc(ctx, entry)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = int64(len(f.Journal) + 1)
	f.Journal = append(f.Journal, *entry)
	return nil
}

func (f *FakeRepository) GetJournalEntries(ctx context.Context, _ bun.IDB, playerID int64, leaderboardID int) ([]ratingdb.RatingJournalEntry, error) {
	f.record("GetJournalEntries")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ratingdb.RatingJournalEntry
	for _, entry := range f.Journal {
		if entry.PlayerID == playerID && entry.LeaderboardID == leaderboardID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *FakeRepository) UpdateGamePlayerStats(ctx context.Context, _ bun.IDB, stats *ratingdb.GamePlayerStats) error {
	f.record("UpdateGamePlayerStats")
	if f.UpdateGamePlayerStatsFunc != nil {
		return f.UpdateGamePlayerStatsFunc(ctx, stats)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stats = append(f.Stats, *stats)
	return nil
}

// ------------------------
// Fake event bus
// ------------------------

type publishedEvent struct {
	Topic   string
	Payload any
}

// FakeEventBus records published events.
type FakeEventBus struct {
	mu     sync.Mutex
	events []publishedEvent

	PublishFunc func(ctx context.Context, topic string, payload any) error
}

func (f *FakeEventBus) Publish(ctx context.Context, topic string, payload any) error {
	if f.PublishFunc != nil {
		if err := f.PublishFunc(ctx, topic, payload); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Topic: topic, Payload: payload})
	return nil
}

func (f *FakeEventBus) Close() error { return nil }

func (f *FakeEventBus) Events() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedEvent, len(f.events))
	copy(out, f.events)
	return out
}
