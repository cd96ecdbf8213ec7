package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"crewdeck.org/internal/migrate"
	"crewdeck.org/migrations"
)

func main() {
	var (
		dsn     = flag.String("dsn", os.Getenv("CREWDECK_PG_DSN"), "PostgreSQL DSN (defaults to CREWDECK_PG_DSN)")
		action  = flag.String("action", "up", "one of: up, down, status")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall timeout")
	)
	flag.Parse()

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "a DSN is required (flag -dsn or CREWDECK_PG_DSN)")
		os.Exit(2)
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ping database: %v\n", err)
		os.Exit(1)
	}

	mgr := migrate.NewManager(db, migrations.FS)

	switch *action {
	case "up":
		if err := mgr.Up(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate up: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := mgr.Down(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate down: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("last migration rolled back")
	case "status":
		names, err := mgr.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate status: %v\n", err)
			os.Exit(1)
		}
		if len(names) == 0 {
			fmt.Println("no migrations applied")
			return
		}
		for _, n := range names {
			fmt.Println(n)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", *action)
		os.Exit(2)
	}
}
