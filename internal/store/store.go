// Package store persists drafts, citations, schema drafts and the
// append-only publish impact log in Postgres.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"optipress/internal/anchor"
	"optipress/internal/verify"
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Draft is a document moving through the optimize/publish workflow.
type Draft struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	OriginalBody  string     `json:"original_body"`
	OptimizedBody string     `json:"optimized_body"`
	Score         *float64   `json:"score,omitempty"`
	Permalink     string     `json:"permalink,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	ReauditCron   string     `json:"reaudit_cron,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Draft operations

func (s *Store) CreateDraft(ctx context.Context, d Draft) (Draft, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO drafts (id, user_id, title, original_body, optimized_body, reaudit_cron, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.UserID, d.Title, d.OriginalBody, d.OptimizedBody, d.ReauditCron, d.CreatedAt, d.UpdatedAt)
	return d, err
}

func (s *Store) GetDraft(ctx context.Context, id, userID string) (Draft, bool, error) {
	var d Draft
	var score sql.NullFloat64
	var permalink sql.NullString
	var publishedAt sql.NullTime
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, title, original_body, optimized_body, score, permalink, published_at, reaudit_cron, created_at, updated_at
		 FROM drafts WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&d.ID, &d.UserID, &d.Title, &d.OriginalBody, &d.OptimizedBody, &score, &permalink, &publishedAt, &d.ReauditCron, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, err
	}
	if score.Valid {
		d.Score = &score.Float64
	}
	d.Permalink = permalink.String
	if publishedAt.Valid {
		t := publishedAt.Time
		d.PublishedAt = &t
	}
	return d, true, nil
}

func (s *Store) ListDrafts(ctx context.Context, userID string, limit int) ([]Draft, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, title, original_body, optimized_body, score, permalink, published_at, reaudit_cron, created_at, updated_at
		 FROM drafts WHERE user_id=$1 ORDER BY updated_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDrafts(rows)
}

func (s *Store) UpdateDraftBodies(ctx context.Context, id, userID, originalBody, optimizedBody string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE drafts SET original_body=$3, optimized_body=$4, updated_at=now() WHERE id=$1 AND user_id=$2`,
		id, userID, originalBody, optimizedBody)
	if err != nil {
		return err
	}
	return requireRow(res, "draft", id)
}

func (s *Store) SetDraftScore(ctx context.Context, id string, score float64) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE drafts SET score=$2, updated_at=now() WHERE id=$1`, id, score)
	return err
}

func (s *Store) SetDraftPublished(ctx context.Context, id, permalink string, publishedAt time.Time) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE drafts SET permalink=$2, published_at=$3, updated_at=now() WHERE id=$1`,
		id, permalink, publishedAt)
	if err != nil {
		return err
	}
	return requireRow(res, "draft", id)
}

func (s *Store) SetDraftReauditCron(ctx context.Context, id, userID, cron string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE drafts SET reaudit_cron=$3, updated_at=now() WHERE id=$1 AND user_id=$2`, id, userID, cron)
	if err != nil {
		return err
	}
	return requireRow(res, "draft", id)
}

// ListAllDrafts returns drafts across all users, newest first, for
// rebuilding the search index at startup.
func (s *Store) ListAllDrafts(ctx context.Context, limit int) ([]Draft, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, title, original_body, optimized_body, score, permalink, published_at, reaudit_cron, created_at, updated_at
		 FROM drafts ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDrafts(rows)
}

// ListPublishedDrafts returns drafts with a permalink and a re-audit
// schedule, across all users, for the background re-audit loop.
func (s *Store) ListPublishedDrafts(ctx context.Context) ([]Draft, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, title, original_body, optimized_body, score, permalink, published_at, reaudit_cron, created_at, updated_at
		 FROM drafts WHERE permalink IS NOT NULL AND permalink <> '' AND reaudit_cron <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDrafts(rows)
}

func scanDrafts(rows *sql.Rows) ([]Draft, error) {
	var out []Draft
	for rows.Next() {
		var d Draft
		var score sql.NullFloat64
		var permalink sql.NullString
		var publishedAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.OriginalBody, &d.OptimizedBody, &score, &permalink, &publishedAt, &d.ReauditCron, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if score.Valid {
			d.Score = &score.Float64
		}
		d.Permalink = permalink.String
		if publishedAt.Valid {
			t := publishedAt.Time
			d.PublishedAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Citation operations

func (s *Store) AddCitation(ctx context.Context, draftID string, c anchor.Citation) (anchor.Citation, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO citations (id, draft_id, title, url, anchor_text, used, no_follow, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, draftID, c.Title, c.URL, c.AnchorText, c.Used, c.NoFollow, c.CreatedAt)
	return c, err
}

func (s *Store) ListCitations(ctx context.Context, draftID string) ([]anchor.Citation, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, title, url, anchor_text, used, no_follow, created_at
		 FROM citations WHERE draft_id=$1 ORDER BY created_at`, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []anchor.Citation
	for rows.Next() {
		var c anchor.Citation
		if err := rows.Scan(&c.ID, &c.Title, &c.URL, &c.AnchorText, &c.Used, &c.NoFollow, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCitation(ctx context.Context, draftID, citationID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM citations WHERE id=$1 AND draft_id=$2`, citationID, draftID)
	if err != nil {
		return err
	}
	return requireRow(res, "citation", citationID)
}

// SaveCitationUsage persists the Used flips reported by anchor insertion.
func (s *Store) SaveCitationUsage(ctx context.Context, draftID string, citations []anchor.Citation) error {
	for _, c := range citations {
		if !c.Used || c.ID == "" {
			continue
		}
		if _, err := s.DB.ExecContext(ctx,
			`UPDATE citations SET used=true WHERE id=$1 AND draft_id=$2`, c.ID, draftID); err != nil {
			return err
		}
	}
	return nil
}

// Schema draft operations

func (s *Store) UpsertSchemaDraft(ctx context.Context, draftID, target, payload string, approved bool) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO schema_drafts (id, draft_id, target, payload, approved, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,now(),now())
		 ON CONFLICT (draft_id, target) DO UPDATE SET payload=EXCLUDED.payload, approved=EXCLUDED.approved, updated_at=now()`,
		uuid.NewString(), draftID, target, payload, approved)
	return err
}

// GetApprovedSchemaDraft returns the caller-approved JSON-LD for a
// draft/target pair, if any.
func (s *Store) GetApprovedSchemaDraft(ctx context.Context, draftID, target string) (string, bool, error) {
	var payload string
	err := s.DB.QueryRowContext(ctx,
		`SELECT payload FROM schema_drafts WHERE draft_id=$1 AND target=$2 AND approved=true`, draftID, target).
		Scan(&payload)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return payload, true, nil
}

// Publish impact log (append-only)

// RecordImpact appends one verification outcome. Records are never edited.
func (s *Store) RecordImpact(ctx context.Context, userID, draftID string, rec verify.ImpactRecord) error {
	var schemaValid sql.NullBool
	if rec.SchemaValid != nil {
		schemaValid = sql.NullBool{Bool: *rec.SchemaValid, Valid: true}
	}
	var scoreBefore, scoreAfter sql.NullFloat64
	if rec.ScoreBefore != nil {
		scoreBefore = sql.NullFloat64{Float64: *rec.ScoreBefore, Valid: true}
	}
	if rec.ScoreAfter != nil {
		scoreAfter = sql.NullFloat64{Float64: *rec.ScoreAfter, Valid: true}
	}
	var delta sql.NullInt64
	if rec.Delta != nil {
		delta = sql.NullInt64{Int64: int64(*rec.Delta), Valid: true}
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO publish_impacts (user_id, draft_id, permalink, schema_used, schema_valid, issue_count, score_before, score_after, delta, summary, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		userID, draftID, rec.Permalink, string(rec.SchemaUsed), schemaValid, rec.IssueCount, scoreBefore, scoreAfter, delta, rec.Summary, rec.CreatedAt)
	return err
}

func (s *Store) ListImpacts(ctx context.Context, userID, draftID string, limit int) ([]verify.ImpactRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT permalink, schema_used, schema_valid, issue_count, score_before, score_after, delta, summary, created_at
		 FROM publish_impacts WHERE user_id=$1 AND draft_id=$2 ORDER BY created_at DESC LIMIT $3`,
		userID, draftID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []verify.ImpactRecord
	for rows.Next() {
		var rec verify.ImpactRecord
		var schemaUsed string
		var schemaValid sql.NullBool
		var scoreBefore, scoreAfter sql.NullFloat64
		var delta sql.NullInt64
		if err := rows.Scan(&rec.Permalink, &schemaUsed, &schemaValid, &rec.IssueCount, &scoreBefore, &scoreAfter, &delta, &rec.Summary, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.SchemaUsed = verify.SchemaSource(schemaUsed)
		if schemaValid.Valid {
			v := schemaValid.Bool
			rec.SchemaValid = &v
		}
		if scoreBefore.Valid {
			v := scoreBefore.Float64
			rec.ScoreBefore = &v
		}
		if scoreAfter.Valid {
			v := scoreAfter.Float64
			rec.ScoreAfter = &v
		}
		if delta.Valid {
			v := int(delta.Int64)
			rec.Delta = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestImpactTime reports when a draft was last verified, for the
// re-audit scheduler.
func (s *Store) LatestImpactTime(ctx context.Context, draftID string) (*time.Time, error) {
	var t sql.NullTime
	err := s.DB.QueryRowContext(ctx,
		`SELECT max(created_at) FROM publish_impacts WHERE draft_id=$1`, draftID).Scan(&t)
	if err != nil {
		return nil, err
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
