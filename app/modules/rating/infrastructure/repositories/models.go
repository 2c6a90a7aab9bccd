package ratingdb

import (
	"time"

	"github.com/uptrace/bun"
)

// Leaderboard is a named rating pool. InitializerID optionally points at
// another leaderboard used to seed brand-new players' priors.
type Leaderboard struct {
	bun.BaseModel `bun:"table:leaderboard,alias:l"`

	ID            int    `bun:"id,pk,autoincrement"`
	TechnicalName string `bun:"technical_name,notnull,unique"`
	InitializerID *int   `bun:"initializer_id"`
}

// LeaderboardRating is the current rating record for one player on one
// leaderboard. Mutated only by the rating worker's single consumer.
type LeaderboardRating struct {
	bun.BaseModel `bun:"table:leaderboard_rating,alias:lr"`

	PlayerID      int64     `bun:"player_id,pk"`
	LeaderboardID int       `bun:"leaderboard_id,pk"`
	Mean          float64   `bun:"mean,notnull"`
	Deviation     float64   `bun:"deviation,notnull"`
	TotalGames    int       `bun:"total_games,notnull,default:0"`
	WonGames      int       `bun:"won_games,notnull,default:0"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// RatingJournalEntry is the append-only audit row capturing one player's
// rating before and after one rated match. Never mutated after insert.
type RatingJournalEntry struct {
	bun.BaseModel `bun:"table:leaderboard_rating_journal,alias:lrj"`

	ID              int64     `bun:"id,pk,autoincrement"`
	GameID          int64     `bun:"game_id,notnull"`
	PlayerID        int64     `bun:"player_id,notnull"`
	LeaderboardID   int       `bun:"leaderboard_id,notnull"`
	MeanBefore      float64   `bun:"mean_before,notnull"`
	DeviationBefore float64   `bun:"deviation_before,notnull"`
	MeanAfter       float64   `bun:"mean_after,notnull"`
	DeviationAfter  float64   `bun:"deviation_after,notnull"`
	CreatedAt       time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// GamePlayerStats is the legacy denormalized per-game-per-player row kept
// for older reporting tooling. Writes to it are best-effort and never
// authoritative.
type GamePlayerStats struct {
	bun.BaseModel `bun:"table:game_player_stats,alias:gps"`

	GameID         int64    `bun:"game_id,pk"`
	PlayerID       int64    `bun:"player_id,pk"`
	Mean           float64  `bun:"mean,notnull"`
	Deviation      float64  `bun:"deviation,notnull"`
	AfterMean      *float64 `bun:"after_mean"`
	AfterDeviation *float64 `bun:"after_deviation"`
	Result         string   `bun:"result,notnull"`
}
