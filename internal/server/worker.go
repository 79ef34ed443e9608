package server

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"optipress/config"
	"optipress/internal/audit"
	"optipress/internal/fetch"
	"optipress/internal/schemaorg"
	"optipress/internal/store"
	"optipress/internal/telemetry"
	"optipress/internal/verify"
)

// RunWorker runs only the background re-audit scheduler, without the
// HTTP API. It blocks until the process is terminated.
func RunWorker(cfg *config.Config) error {
	ctx := context.Background()

	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics(nil)
	scorer := audit.NewHTTPScorer(cfg.Audit.Endpoint, cfg.Audit.APIKey, cfg.Audit.Timeout, cfg.Audit.MaxRetries)
	generator := schemaorg.NewOpenAIGenerator(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.Model,
		cfg.Providers.OpenAI.Temperature, cfg.Providers.OpenAI.MaxTokens, cfg.Providers.OpenAI.Timeout)
	if cfg.Providers.OpenAI.BaseURL != "" {
		generator.WithBaseURL(cfg.Providers.OpenAI.BaseURL)
	}
	verifier := verify.New(scorer, generator, st, nil, metrics)

	if cfg.Storage.Redis.Host == "" || cfg.Storage.Redis.Port == "" {
		return fmt.Errorf("redis not configured (storage.redis.host/port)")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
	}

	sched := &Scheduler{
		Store:    st,
		Stop:     make(chan struct{}),
		Rdb:      rdb,
		Verifier: verifier,
		Fetcher:  &fetch.ChromeFetcher{Timeout: cfg.Audit.Timeout, MaxChars: cfg.Audit.SnapshotChars},
		Logger:   log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
	sched.Start()

	log.Printf("re-audit worker running")
	select {}
}
