package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/milpatel11/sk-ui-sub001/internal/config"
	"github.com/milpatel11/sk-ui-sub001/internal/migrate"
	"github.com/milpatel11/sk-ui-sub001/internal/store/pg"
)

const usage = "usage: migrate [-dsn DSN] [-timeout D] command... (up, down, seed, status)"

func main() {
	log.SetFlags(0)
	log.SetPrefix("migrate: ")

	var defaultDSN string
	if cfg, err := config.Read(); err == nil {
		defaultDSN = cfg.PostgresDSN
	}
	dsn := flag.String("dsn", defaultDSN, "PostgreSQL DSN (defaults to PORTAL_PG_DSN or the config file)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if strings.TrimSpace(*dsn) == "" {
		log.Fatal("missing DSN: provide via -dsn or PORTAL_PG_DSN")
	}
	commands := flag.Args()
	if len(commands) == 0 {
		log.Fatal(usage)
	}

	st, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	mgr := migrate.NewManager(st.DB(), "postgres", pg.Files, migrate.WithDirs(pg.MigrationsDir, pg.SeedsDir))
	// Commands run in order, so "up seed" prepares a fresh database.
	for _, name := range commands {
		if err := run(ctx, mgr, name); err != nil {
			log.Fatalf("%s: %v", name, err)
		}
	}
}

func run(ctx context.Context, mgr *migrate.Manager, name string) error {
	switch name {
	case "up":
		return mgr.Up(ctx)
	case "down":
		return mgr.Down(ctx)
	case "seed":
		return mgr.Seed(ctx)
	case "status":
		applied, err := mgr.Status(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(os.Stdout, "no migrations applied")
		}
		for _, item := range applied {
			fmt.Fprintln(os.Stdout, item)
		}
		return nil
	default:
		return fmt.Errorf("unknown command (%s)", usage)
	}
}
