package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"optipress/internal/anchor"
	"optipress/internal/store"
	"optipress/internal/verify"
)

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("optipress"),
		tcPostgres.WithUsername("optipress"),
		tcPostgres.WithPassword("optipress"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://optipress:optipress@%s:%s/optipress?sslmode=disable", host, port.Port())
	if err := applySchema(ctx, dsn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.DB.Close()

	d, err := st.CreateDraft(ctx, store.Draft{
		UserID:       "u1",
		Title:        "My Pets",
		OriginalBody: "I have a cat named Max.",
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}

	c, err := st.AddCitation(ctx, d.ID, anchor.Citation{Title: "Cat", URL: "https://en.wikipedia.org/wiki/Cat"})
	if err != nil {
		t.Fatalf("add citation: %v", err)
	}

	body := d.OriginalBody
	updated, resolved := anchor.InsertAnchors(body, []anchor.Citation{c})
	if !resolved[0].Used {
		t.Fatalf("expected citation marked used")
	}
	if err := st.UpdateDraftBodies(ctx, d.ID, "u1", body, updated); err != nil {
		t.Fatalf("update bodies: %v", err)
	}
	if err := st.SaveCitationUsage(ctx, d.ID, resolved); err != nil {
		t.Fatalf("save usage: %v", err)
	}

	cs, err := st.ListCitations(ctx, d.ID)
	if err != nil {
		t.Fatalf("list citations: %v", err)
	}
	if len(cs) != 1 || !cs[0].Used {
		t.Fatalf("expected persisted used flag, got %+v", cs)
	}

	if err := st.SetDraftPublished(ctx, d.ID, "https://example.com/my-pets", time.Now()); err != nil {
		t.Fatalf("set published: %v", err)
	}
	if err := st.SetDraftReauditCron(ctx, d.ID, "u1", "0 3 * * *"); err != nil {
		t.Fatalf("set cron: %v", err)
	}

	published, err := st.ListPublishedDrafts(ctx)
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if len(published) != 1 || published[0].ID != d.ID {
		t.Fatalf("expected published draft, got %+v", published)
	}

	before, after := 60.0, 64.0
	delta := 4
	valid := true
	rec := verify.ImpactRecord{
		CreatedAt:   time.Now().UTC(),
		SchemaUsed:  verify.SchemaInserted,
		SchemaValid: &valid,
		ScoreBefore: &before,
		ScoreAfter:  &after,
		Delta:       &delta,
		Permalink:   "https://example.com/my-pets",
		Summary:     "Schema: valid; Score: 64 (+4)",
	}
	if err := st.RecordImpact(ctx, "u1", d.ID, rec); err != nil {
		t.Fatalf("record impact: %v", err)
	}

	recs, err := st.ListImpacts(ctx, "u1", d.ID, 10)
	if err != nil {
		t.Fatalf("list impacts: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected one impact, got %d", len(recs))
	}
	got := recs[0]
	if got.SchemaValid == nil || !*got.SchemaValid || got.Delta == nil || *got.Delta != 4 {
		t.Fatalf("impact lost fields: %+v", got)
	}

	ts, err := st.LatestImpactTime(ctx, d.ID)
	if err != nil {
		t.Fatalf("latest impact: %v", err)
	}
	if ts == nil {
		t.Fatalf("expected impact timestamp")
	}
}

func applySchema(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	schemaSQL := `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS drafts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    original_body TEXT NOT NULL DEFAULT '',
    optimized_body TEXT NOT NULL DEFAULT '',
    score DOUBLE PRECISION,
    permalink TEXT,
    published_at TIMESTAMPTZ,
    reaudit_cron TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS citations (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    draft_id UUID NOT NULL REFERENCES drafts(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    url TEXT NOT NULL,
    anchor_text TEXT NOT NULL DEFAULT '',
    used BOOLEAN NOT NULL DEFAULT false,
    no_follow BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS schema_drafts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    draft_id UUID NOT NULL REFERENCES drafts(id) ON DELETE CASCADE,
    target TEXT NOT NULL,
    payload TEXT NOT NULL,
    approved BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (draft_id, target)
);

CREATE TABLE IF NOT EXISTS publish_impacts (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    draft_id UUID NOT NULL,
    permalink TEXT NOT NULL DEFAULT '',
    schema_used TEXT NOT NULL DEFAULT 'none',
    schema_valid BOOLEAN,
    issue_count INTEGER NOT NULL DEFAULT 0,
    score_before DOUBLE PRECISION,
    score_after DOUBLE PRECISION,
    delta INTEGER,
    summary TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
