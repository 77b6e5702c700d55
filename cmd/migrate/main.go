package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"commonmetrics/adapters/postgres"
	"commonmetrics/internal/config"
	"commonmetrics/internal/migration"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required for migrations")
	}

	ctx := context.Background()
	db, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migrations complete (version %s)", runner.Version())
}
