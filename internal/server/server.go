package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"optipress/config"
	"optipress/internal/audit"
	"optipress/internal/fetch"
	"optipress/internal/publisher"
	"optipress/internal/schemaorg"
	"optipress/internal/search"
	"optipress/internal/store"
	"optipress/internal/telemetry"
	"optipress/internal/verify"
)

// Run wires the full service and blocks serving HTTP.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	_ = Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0)

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}

	metrics := telemetry.NewMetrics(nil)

	scorer := audit.NewHTTPScorer(cfg.Audit.Endpoint, cfg.Audit.APIKey, cfg.Audit.Timeout, cfg.Audit.MaxRetries)
	generator := schemaorg.NewOpenAIGenerator(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.Model,
		cfg.Providers.OpenAI.Temperature, cfg.Providers.OpenAI.MaxTokens, cfg.Providers.OpenAI.Timeout)
	if cfg.Providers.OpenAI.BaseURL != "" {
		generator.WithBaseURL(cfg.Providers.OpenAI.BaseURL)
	}
	wp := publisher.NewWordPress(cfg.Publish.WordPress.SiteURL, cfg.Publish.WordPress.Username,
		cfg.Publish.WordPress.AppPassword, cfg.Publish.WordPress.Status, cfg.Publish.WordPress.Timeout)

	verifier := verify.New(scorer, generator, st, nil, metrics)

	idx, err := search.NewIndex()
	if err != nil {
		return err
	}
	// Warm the index from existing drafts so search works after restart.
	if drafts, err := st.ListAllDrafts(ctx, 0); err == nil {
		for _, d := range drafts {
			_ = idx.IndexDraft(d)
		}
	}

	api := e.Group("/api")

	dh := &DraftsHandler{Store: st, Index: idx}
	dh.Register(api.Group("/drafts"), []byte(secret))

	ch := &CitationsHandler{Store: st}
	ch.Register(api.Group("/drafts"), []byte(secret))

	sch := &SchemaHandler{Store: st, Generator: generator, SiteName: cfg.General.SiteName}
	sch.Register(api.Group("/drafts"), []byte(secret))

	ph := &PublishHandler{
		Store:     st,
		Publisher: wp,
		Verifier:  verifier,
		Metrics:   metrics,
		SiteName:  cfg.General.SiteName,
		Logger:    log.New(log.Writer(), "[PUBLISH] ", log.LstdFlags),
	}
	ph.Register(api.Group("/drafts"), []byte(secret))

	sh := &SearchHandler{Index: idx}
	sh.Register(api.Group("/search"), []byte(secret))

	// Re-audit scheduler with redis locks
	if cfg.Storage.Redis.Host == "" || cfg.Storage.Redis.Port == "" {
		return fmt.Errorf("redis not configured (storage.redis.host/port)")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
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

	if addr == "" {
		addr = cfg.Server.Address
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
