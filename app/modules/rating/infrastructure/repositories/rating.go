package ratingdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// RatingDBImpl implements Repository on top of bun/Postgres.
type RatingDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*RatingDBImpl)(nil)

func (r *RatingDBImpl) idb(db bun.IDB) bun.IDB {
	if db == nil {
		return r.DB
	}
	return db
}

func (r *RatingDBImpl) GetLeaderboards(ctx context.Context, db bun.IDB) ([]Leaderboard, error) {
	var leaderboards []Leaderboard
	err := r.idb(db).NewSelect().
		Model(&leaderboards).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboards: %w", err)
	}
	return leaderboards, nil
}

func (r *RatingDBImpl) GetRating(ctx context.Context, db bun.IDB, playerID int64, leaderboardID int) (*LeaderboardRating, error) {
	var rating LeaderboardRating
	err := r.idb(db).NewSelect().
		Model(&rating).
		Where("player_id = ?", playerID).
		Where("leaderboard_id = ?", leaderboardID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to fetch rating for player %d on leaderboard %d: %w", playerID, leaderboardID, err)
	}
	return &rating, nil
}

func (r *RatingDBImpl) UpsertRating(ctx context.Context, db bun.IDB, rec *LeaderboardRating) error {
	rec.UpdatedAt = time.Now().UTC()
	_, err := r.idb(db).NewInsert().
		Model(rec).
		On("CONFLICT (player_id, leaderboard_id) DO UPDATE").
		Set("mean = EXCLUDED.mean").
		Set("deviation = EXCLUDED.deviation").
		Set("total_games = EXCLUDED.total_games").
		Set("won_games = EXCLUDED.won_games").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert rating for player %d on leaderboard %d: %w", rec.PlayerID, rec.LeaderboardID, err)
	}
	return nil
}

func (r *RatingDBImpl) InsertJournalEntry(ctx context.Context, db bun.IDB, entry *RatingJournalEntry) error {
	_, err := r.idb(db).NewInsert().
		Model(entry).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert rating journal entry for player %d game %d: %w", entry.PlayerID, entry.GameID, err)
	}
	return nil
}

func (r *RatingDBImpl) GetJournalEntries(ctx context.Context, db bun.IDB, playerID int64, leaderboardID int) ([]RatingJournalEntry, error) {
	var entries []RatingJournalEntry
	err := r.idb(db).NewSelect().
		Model(&entries).
		Where("player_id = ?", playerID).
		Where("leaderboard_id = ?", leaderboardID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journal entries for player %d: %w", playerID, err)
	}
	return entries, nil
}

func (r *RatingDBImpl) UpdateGamePlayerStats(ctx context.Context, db bun.IDB, stats *GamePlayerStats) error {
	_, err := r.idb(db).NewInsert().
		Model(stats).
		On("CONFLICT (game_id, player_id) DO UPDATE").
		Set("mean = EXCLUDED.mean").
		Set("deviation = EXCLUDED.deviation").
		Set("after_mean = EXCLUDED.after_mean").
		Set("after_deviation = EXCLUDED.after_deviation").
		Set("result = EXCLUDED.result").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update game player stats for player %d game %d: %w", stats.PlayerID, stats.GameID, err)
	}
	return nil
}
