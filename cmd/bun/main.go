package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"

	ratingdb "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories"
	ratingmigrations "github.com/FAForever/rating-server/app/modules/rating/infrastructure/repositories/migrations"
	"github.com/FAForever/rating-server/config"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	db := bun.NewDB(pgdb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, ratingmigrations.Migrations)

	cliApp := &cli.App{
		Name: "bun",
		Commands: []*cli.Command{
			newDBCommand(migrator),
			newJournalCommand(&ratingdb.RatingDBImpl{DB: db}),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newJournalCommand prints a player's append-only rating journal for one
// leaderboard, oldest first. Audit/admin tooling entry point.
func newJournalCommand(repo *ratingdb.RatingDBImpl) *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "print a player's rating journal for a leaderboard",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "player", Usage: "player id", Required: true},
			&cli.IntFlag{Name: "leaderboard", Usage: "leaderboard id", Required: true},
		},
		Action: func(c *cli.Context) error {
			entries, err := repo.GetJournalEntries(c.Context, nil, c.Int64("player"), c.Int("leaderboard"))
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("game %d: (%.1f, %.1f) -> (%.1f, %.1f)\n",
					e.GameID, e.MeanBefore, e.DeviationBefore, e.MeanAfter, e.DeviationAfter)
			}
			return nil
		},
	}
}

func newDBCommand(migrator *migrate.Migrator) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					return migrator.Init(c.Context)
				},
			},
			{
				Name:  "migrate",
				Usage: "migrate database",
				Action: func(c *cli.Context) error {
					group, err := migrator.Migrate(c.Context)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Println("there are no new migrations to run")
						return nil
					}
					fmt.Printf("migrated to %s\n", group)
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group",
				Action: func(c *cli.Context) error {
					group, err := migrator.Rollback(c.Context)
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Println("there are no groups to roll back")
						return nil
					}
					fmt.Printf("rolled back %s\n", group)
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print migration status",
				Action: func(c *cli.Context) error {
					ms, err := migrator.MigrationsWithStatus(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("migrations: %s\n", ms)
					fmt.Printf("unapplied migrations: %s\n", ms.Unapplied())
					fmt.Printf("last migration group: %s\n", ms.LastGroup())
					return nil
				},
			},
			{
				Name:  "mark_applied",
				Usage: "mark migrations as applied without actually running them",
				Action: func(c *cli.Context) error {
					group, err := migrator.Migrate(c.Context, migrate.WithNopMigration())
					if err != nil {
						return err
					}
					if group.IsZero() {
						fmt.Println("there are no new migrations to mark as applied")
						return nil
					}
					fmt.Printf("marked as applied %s\n", strings.TrimPrefix(group.String(), "group "))
					return nil
				},
			},
		},
	}
}
