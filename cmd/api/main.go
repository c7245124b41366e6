package main

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"genecorr/adapters/api"
	"genecorr/adapters/nullcache"
	"genecorr/adapters/postgres"
	"genecorr/adapters/rng"
	"genecorr/app"
	"genecorr/internal/config"
	"genecorr/internal/nulldist"
	"genecorr/ports"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	generator := nulldist.NewGenerator(rng.NewStreamFactory())
	service := app.NewBatchService(generator)
	if cfg.Null.Workers > 0 {
		service.SetWorkers(cfg.Null.Workers)
	}

	if cfg.Null.CachePath != "" {
		store, err := nullcache.Open(cfg.Null.CachePath)
		if err != nil {
			log.Fatalf("open null cache %s: %v", cfg.Null.CachePath, err)
		}
		defer store.Close()
		service.SetNullStore(store)
	}

	var results ports.ResultRepositoryPort
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}
		defer db.Close()

		repo := postgres.NewResultRepository(db)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
		service.SetResultRepository(repo)
		results = repo
	} else {
		log.Printf("[APIServer] DATABASE_URL not set; runs will not be persisted")
	}

	server := api.NewServer(service, results)
	if err := server.ListenAndServe(cfg.Server.Addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
