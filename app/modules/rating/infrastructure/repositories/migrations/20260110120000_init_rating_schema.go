package ratingmigrations

import (
	"context"
	"fmt"

	ratingdb "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating rating schema...")

		models := []any{
			(*ratingdb.Leaderboard)(nil),
			(*ratingdb.LeaderboardRating)(nil),
			(*ratingdb.RatingJournalEntry)(nil),
			(*ratingdb.GamePlayerStats)(nil),
		}
		for _, model := range models {
			if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		// Seed the built-in leaderboards: ladder seeds new players from
		// their global rating.
		global := &ratingdb.Leaderboard{TechnicalName: "global"}
		if _, err := db.NewInsert().Model(global).On("CONFLICT (technical_name) DO NOTHING").Exec(ctx); err != nil {
			return err
		}
		ladder := &ratingdb.Leaderboard{TechnicalName: "ladder_1v1", InitializerID: &global.ID}
		if _, err := db.NewInsert().Model(ladder).On("CONFLICT (technical_name) DO NOTHING").Exec(ctx); err != nil {
			return err
		}

		fmt.Println("Rating schema created successfully!")
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping rating schema...")

		models := []any{
			(*ratingdb.GamePlayerStats)(nil),
			(*ratingdb.RatingJournalEntry)(nil),
			(*ratingdb.LeaderboardRating)(nil),
			(*ratingdb.Leaderboard)(nil),
		}
		for _, model := range models {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		fmt.Println("Rating schema dropped successfully!")
		return nil
	})
}
