package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"ms-booking/internal/config"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const usage = `usage: migrate [-dir ./migrations] [-seed] <command>

commands:
  up          apply schema migrations (all migrations with -seed)
  down        roll back every migration
  to <n>      migrate to version n
  version     print the current version
`

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dir := flag.String("dir", cfg.Database.MigrationsDir, "migrations directory")
	seed := flag.Bool("seed", cfg.Database.SeedData, "also apply seed data migrations")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logCfg := cfg.Log
	logCfg.Service = "booking-migrate"
	logCfg.Dir = ""
	log := logger.New(logCfg.Options(os.Stdout))
	defer log.Close()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if cfg.Database.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	ctx := context.Background()
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}

	runner := migrations.NewRunner(bun.NewDB(sqldb, pgdialect.New()), migrations.MigrateOptions{
		MigrationsDir: *dir,
		SeedData:      *seed,
	}, log)
	// closes sqldb too
	defer runner.Close()

	if err := run(runner, flag.Args(), log); err != nil {
		log.Error("MIGRATE", err.Error())
		runner.Close()
		os.Exit(1)
	}
}

func run(runner *migrations.Runner, args []string, log *logger.Logger) error {
	if err := runner.Initialize(); err != nil {
		return err
	}

	switch args[0] {
	case "up":
		return runner.RunMigrations()
	case "down":
		return runner.MigrateDown()
	case "to":
		if len(args) < 2 {
			return fmt.Errorf("to: missing version")
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("to: %w", err)
		}
		return runner.MigrateTo(uint(v))
	case "version":
		v, ok, err := runner.Version()
		if err != nil {
			return err
		}
		if !ok {
			log.Info("MIGRATE", "no migrations applied")
			return nil
		}
		log.Info("MIGRATE", fmt.Sprintf("version %d", v))
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
