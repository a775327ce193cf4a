package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"eventify/internal/config"
	"eventify/internal/database"
	"eventify/internal/database/migrations"
	"eventify/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	action := flag.String("action", "up", "migration action: up, down, reset or version")
	schemaOnly := flag.Bool("schema-only", false, "skip the seed migrations")
	flag.Parse()

	log := logger.NewWriterLogger("migrate", os.Stdout)

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("CONFIG", err.Error())
	}
	if cfg.Database.Driver != "postgres" {
		log.Fatal("CONFIG", fmt.Sprintf("migrations target postgres, DATABASE_DRIVER is %q", cfg.Database.Driver))
	}

	ctx := context.Background()
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB.DB, migrations.MigrateOptions{SeedData: !*schemaOnly}, log)
	defer runner.Close()

	switch *action {
	case "up":
		err = runner.Run()
	case "down":
		err = runner.Down()
	case "reset":
		if err = runner.Down(); err == nil {
			err = runner.Run()
		}
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = runner.Version()
		if err == nil {
			log.Info("MIGRATE", fmt.Sprintf("version=%d dirty=%t", version, dirty))
		}
	default:
		log.Fatal("MIGRATE", fmt.Sprintf("unknown action %q", *action))
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("%s done", *action))
}
