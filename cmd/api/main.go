package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"commonmetrics/adapters/lmm"
	"commonmetrics/adapters/postgres"
	"commonmetrics/api"
	"commonmetrics/app"
	"commonmetrics/domain/metric"
	"commonmetrics/internal/config"
	"commonmetrics/internal/migration"
	"commonmetrics/ports"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var store ports.ReportStore
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(context.Background(), cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := migration.NewRunner().Run(context.Background(), db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		store = postgres.NewReportRepository(db)
	} else {
		log.Printf("DATABASE_URL not set, report persistence disabled")
	}

	service := app.NewMetricService(metric.NewCatalog(), lmm.NewFitter(), store)
	if err := api.NewApp(service, store).Start(cfg.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
