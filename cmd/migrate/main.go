package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/gamestore-backend/pkg/config"
	"github.com/angelmondragon/gamestore-backend/pkg/db"
	"github.com/angelmondragon/gamestore-backend/pkg/logger"
	"github.com/angelmondragon/gamestore-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up | down | redo | status | version   run the goose command against GAMESTORE_DB_DSN
  to <YYYYMMDDHHMMSS>                    migrate up or down to an exact version
  create <name>                          scaffold a new SQL migration in -dir
  validate                               check filenames and goose markers

Without -dir the migrations embedded in the binary are used.
`

func main() {
	dir := flag.String("dir", "", "migrations directory (default: embedded)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, arg := flag.Arg(0), flag.Arg(1)

	// file-only commands do not need config or a database
	switch command {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, arg)
		exitOn(err, "create migration")
		fmt.Println("created", path)
		return
	case "validate":
		var err error
		if *dir == "" {
			err = migrate.ValidateFS(migrate.Embedded(), "migrations")
		} else {
			err = migrate.ValidateDir(*dir)
		}
		exitOn(err, "validate migrations")
		fmt.Println("migrations valid")
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	exitOn(err, "load config")

	logg := logger.FromConfig("migrate", cfg.App)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"command": command,
		"dir":     *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to obtain sql handle", err)
		os.Exit(1)
	}

	switch command {
	case "up", "down", "redo", "status", "version":
		err = migrate.Run(ctx, sqlDB, *dir, command)
	case "to":
		err = migrate.MigrateToVersion(ctx, sqlDB, *dir, arg)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func exitOn(err error, what string) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
