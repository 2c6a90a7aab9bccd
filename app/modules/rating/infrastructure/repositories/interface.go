package ratingdb

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository is the persistence surface of the rating pipeline. Every method
// accepts an optional bun.IDB so callers can run several writes inside one
// transaction; passing nil uses the repository's own connection.
type Repository interface {
	GetLeaderboards(ctx context.Context, db bun.IDB) ([]Leaderboard, error)
	GetRating(ctx context.Context, db bun.IDB, playerID int64, leaderboardID int) (*LeaderboardRating, error)
	UpsertRating(ctx context.Context, db bun.IDB, rec *LeaderboardRating) error
	InsertJournalEntry(ctx context.Context, db bun.IDB, entry *RatingJournalEntry) error
	GetJournalEntries(ctx context.Context, db bun.IDB, playerID int64, leaderboardID int) ([]RatingJournalEntry, error)
	UpdateGamePlayerStats(ctx context.Context, db bun.IDB, stats *GamePlayerStats) error
}
