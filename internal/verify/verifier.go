// Package verify runs the best-effort post-publish verification pipeline:
// structured-data validation and a content re-score, joined into a single
// impact record. No stage failure ever reaches the publish caller.
package verify

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"optipress/internal/audit"
	"optipress/internal/schemaorg"
	"optipress/internal/telemetry"
)

// SchemaSource says which structured-data draft a verification trusts.
type SchemaSource string

const (
	SchemaNone      SchemaSource = "none"
	SchemaInserted  SchemaSource = "inserted"
	SchemaGenerated SchemaSource = "generated"
)

// ImpactRecord is the append-only provenance entry for one publish action.
// Nil pointer fields mean "unknown": the stage that would have produced
// them failed, which is distinct from a negative result.
type ImpactRecord struct {
	CreatedAt   time.Time    `json:"created_at"`
	SchemaUsed  SchemaSource `json:"schema_used"`
	SchemaValid *bool        `json:"schema_valid"`
	IssueCount  int          `json:"issue_count"`
	ScoreBefore *float64     `json:"score_before"`
	ScoreAfter  *float64     `json:"score_after"`
	Delta       *int         `json:"delta"`
	Permalink   string       `json:"permalink,omitempty"`
	Summary     string       `json:"summary"`
}

// Recorder appends impact records keyed by document identity. Failures are
// the verifier's to log and swallow.
type Recorder interface {
	RecordImpact(ctx context.Context, userID, draftID string, rec ImpactRecord) error
}

// Params carries everything one verification run needs.
type Params struct {
	UserID  string
	DraftID string

	SchemaSource     SchemaSource
	SchemaDraft      string // stored JSON-LD, used when SchemaSource is "inserted"
	ContentType      string
	AcceptedEntities []string
	SiteName         string

	Body      string
	PreScore  *float64
	PreURL    string
	Permalink string
}

// Verifier orchestrates the verification stages.
type Verifier struct {
	Scorer    audit.Scorer
	Generator schemaorg.Generator
	Validator func(string) (schemaorg.CheckResult, error)
	Recorder  Recorder
	Logger    *log.Logger
	Metrics   *telemetry.Metrics
}

func New(scorer audit.Scorer, generator schemaorg.Generator, recorder Recorder, logger *log.Logger, metrics *telemetry.Metrics) *Verifier {
	if logger == nil {
		logger = log.New(log.Writer(), "[VERIFY] ", log.LstdFlags)
	}
	return &Verifier{
		Scorer:    scorer,
		Generator: generator,
		Validator: schemaorg.Validate,
		Recorder:  recorder,
		Logger:    logger,
		Metrics:   metrics,
	}
}

// VerifyAfterPublish runs the schema stage and the score stage
// concurrently, waits for both to settle, composes the summary from
// whatever fields survived, and appends the record. It never returns an
// error: each stage downgrades its own failure to an unknown value, and a
// persistence failure is logged and swallowed.
func (v *Verifier) VerifyAfterPublish(ctx context.Context, p Params) ImpactRecord {
	start := time.Now()
	if v.Metrics != nil {
		v.Metrics.VerificationsTotal.Inc()
		defer func() {
			v.Metrics.VerificationDuration.Observe(time.Since(start).Seconds())
		}()
	}
	if p.SchemaSource == "" {
		p.SchemaSource = SchemaNone
	}

	rec := ImpactRecord{
		CreatedAt:   start.UTC(),
		SchemaUsed:  p.SchemaSource,
		ScoreBefore: p.PreScore,
		Permalink:   p.Permalink,
	}

	var (
		schemaValid *bool
		issueCount  int
		scoreAfter  *float64
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer v.recoverStage("schema")
		schemaValid, issueCount = v.runSchemaStage(ctx, p)
	}()
	go func() {
		defer wg.Done()
		defer v.recoverStage("score")
		scoreAfter = v.runScoreStage(ctx, p)
	}()
	wg.Wait()

	rec.SchemaValid = schemaValid
	rec.IssueCount = issueCount
	rec.ScoreAfter = scoreAfter
	if rec.ScoreBefore != nil && rec.ScoreAfter != nil {
		d := int(math.Round(*rec.ScoreAfter - *rec.ScoreBefore))
		rec.Delta = &d
	}
	rec.Summary = summarize(rec)

	if v.Recorder != nil {
		if err := v.Recorder.RecordImpact(ctx, p.UserID, p.DraftID, rec); err != nil {
			// Verification having run matters more than it having been recorded.
			v.Logger.Printf("impact record not persisted (draft %s): %v", p.DraftID, err)
			v.stageFailure("persist")
		}
	}
	return rec
}

// runSchemaStage resolves and validates the structured data. A nil valid
// flag means the stage could not produce a verdict.
func (v *Verifier) runSchemaStage(ctx context.Context, p Params) (*bool, int) {
	switch p.SchemaSource {
	case SchemaNone:
		return nil, 0
	case SchemaInserted:
		return v.validateDraft(p.SchemaDraft, p.DraftID)
	case SchemaGenerated:
		if v.Generator == nil {
			return nil, 0
		}
		pageURL := p.Permalink
		if pageURL == "" {
			pageURL = p.PreURL
		}
		generated, err := v.Generator.Generate(ctx, pageURL, p.ContentType, p.Body, p.AcceptedEntities, p.SiteName)
		if err != nil {
			v.Logger.Printf("schema generation failed (draft %s): %v", p.DraftID, err)
			v.stageFailure("schema")
			return nil, 0
		}
		return v.validateDraft(generated, p.DraftID)
	default:
		v.Logger.Printf("unknown schema source %q (draft %s)", p.SchemaSource, p.DraftID)
		return nil, 0
	}
}

func (v *Verifier) validateDraft(schemaJSON, draftID string) (*bool, int) {
	validator := v.Validator
	if validator == nil {
		validator = schemaorg.Validate
	}
	res, err := validator(schemaJSON)
	if err != nil {
		// Validator failure is "unknown", not "invalid".
		v.Logger.Printf("schema validation failed (draft %s): %v", draftID, err)
		v.stageFailure("schema")
		return nil, 0
	}
	valid := res.Valid
	return &valid, len(res.Issues)
}

func (v *Verifier) runScoreStage(ctx context.Context, p Params) *float64 {
	if v.Scorer == nil {
		return nil
	}
	pageURL := p.Permalink
	if pageURL == "" {
		pageURL = p.PreURL
	}
	score, err := v.Scorer.Score(ctx, pageURL, p.Body)
	if err != nil {
		v.Logger.Printf("re-score failed (draft %s): %v", p.DraftID, err)
		v.stageFailure("score")
		return nil
	}
	return &score
}

func (v *Verifier) recoverStage(stage string) {
	if r := recover(); r != nil {
		v.Logger.Printf("%s stage panicked: %v", stage, r)
		v.stageFailure(stage)
	}
}

func (v *Verifier) stageFailure(stage string) {
	if v.Metrics != nil {
		v.Metrics.StageFailures.WithLabelValues(stage).Inc()
	}
}

// summarize builds the one-line verdict from the non-nil fields; an unknown
// field degrades the phrasing instead of failing it.
func summarize(rec ImpactRecord) string {
	var parts []string

	switch {
	case rec.SchemaUsed == SchemaNone:
		parts = append(parts, "Schema: none")
	case rec.SchemaValid == nil:
		parts = append(parts, "Schema: checked")
	case *rec.SchemaValid:
		parts = append(parts, "Schema: valid")
	default:
		parts = append(parts, fmt.Sprintf("Schema: invalid (%d issues)", rec.IssueCount))
	}

	switch {
	case rec.ScoreAfter == nil:
		parts = append(parts, "Visibility: checked")
	case rec.Delta != nil:
		parts = append(parts, fmt.Sprintf("Score: %.0f (%+d)", *rec.ScoreAfter, *rec.Delta))
	default:
		parts = append(parts, fmt.Sprintf("Score: %.0f", *rec.ScoreAfter))
	}

	return strings.Join(parts, "; ")
}
