package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"accounter.org/internal/migrate"
	"accounter.org/internal/obs"
)

func main() {
	_ = godotenv.Load()
	log := obs.Logger()

	var (
		dsn   = flag.String("dsn", os.Getenv("ACCOUNTER_PG_DSN"), "PostgreSQL DSN")
		table = flag.String("table", "", "Migrations bookkeeping table (default schema_migrations)")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal().Msg("missing DSN: provide via -dsn or ACCOUNTER_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal().Msg("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	mgr := migrate.NewManager(db, migrate.Embedded(), migrate.WithMigrationsTable(*table))

	switch flag.Arg(0) {
	case "up":
		var ran []string
		ran, err = mgr.Up(ctx)
		log.Info().Int("applied", len(ran)).Msg("migrations up")
	case "down":
		var last string
		last, err = mgr.Down(ctx)
		if err == nil {
			fmt.Println(last)
		}
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatal().Str("command", flag.Arg(0)).Msg("unknown command")
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("migrate failed")
	}
	log.Info().Str("command", flag.Arg(0)).Msg("migrate done")
}
