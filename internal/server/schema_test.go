package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"optipress/internal/store"
)

const validArticleJSON = `{"@context":"https://schema.org","@type":"Article","headline":"My Pets"}`

type fixedGenerator struct {
	payload string
	err     error

	gotURL  string
	gotType string
}

func (g *fixedGenerator) Generate(_ context.Context, url, contentType, _ string, _ []string, _ string) (string, error) {
	g.gotURL = url
	g.gotType = contentType
	return g.payload, g.err
}

func TestSchemaGenerateStoresUnapprovedDraft(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	gen := &fixedGenerator{payload: validArticleJSON}
	handler := &SchemaHandler{Store: &store.Store{DB: db}, Generator: gen, SiteName: "My Blog"}

	mock.ExpectQuery(`SELECT .* FROM drafts`).
		WithArgs("d1", "user-1").
		WillReturnRows(draftRows("d1", "user-1", "My Pets", "I have a cat.", ""))
	mock.ExpectExec(`INSERT INTO schema_drafts`).
		WithArgs(sqlmock.AnyArg(), "d1", "Article", validArticleJSON, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, rec := newHandlerContext(t, http.MethodPost, "/api/drafts/d1/schema/generate",
		`{"content_type":"Article"}`)
	ctx.SetParamNames("id")
	ctx.SetParamValues("d1")

	if err := handler.generate(ctx); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gen.gotType != "Article" {
		t.Fatalf("generator got content type %q", gen.gotType)
	}
	var resp struct {
		Payload string `json:"payload"`
		Check   struct {
			Valid bool `json:"valid"`
		} `json:"check"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Payload != validArticleJSON || !resp.Check.Valid {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSchemaApprovePersistsApprovedRow(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &SchemaHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(`SELECT .* FROM drafts`).
		WithArgs("d1", "user-1").
		WillReturnRows(draftRows("d1", "user-1", "My Pets", "body", ""))
	mock.ExpectExec(`INSERT INTO schema_drafts`).
		WithArgs(sqlmock.AnyArg(), "d1", "Article", validArticleJSON, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body, _ := json.Marshal(SchemaApproveRequest{ContentType: "Article", Payload: validArticleJSON})
	ctx, rec := newHandlerContext(t, http.MethodPost, "/api/drafts/d1/schema/approve", string(body))
	ctx.SetParamNames("id")
	ctx.SetParamValues("d1")

	if err := handler.approve(ctx); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSchemaApproveRejectsInvalidPayload(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &SchemaHandler{Store: &store.Store{DB: db}}

	mock.ExpectQuery(`SELECT .* FROM drafts`).
		WithArgs("d1", "user-1").
		WillReturnRows(draftRows("d1", "user-1", "My Pets", "body", ""))

	body, _ := json.Marshal(SchemaApproveRequest{ContentType: "Article", Payload: `{"@context":"https://schema.org","@type":"Article"}`})
	ctx, _ := newHandlerContext(t, http.MethodPost, "/api/drafts/d1/schema/approve", string(body))
	ctx.SetParamNames("id")
	ctx.SetParamValues("d1")

	err = handler.approve(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing headline, got %v", err)
	}
}

func TestSchemaGenerateRequiresContentType(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	handler := &SchemaHandler{Store: &store.Store{DB: db}, Generator: &fixedGenerator{}}

	mock.ExpectQuery(`SELECT .* FROM drafts`).
		WithArgs("d1", "user-1").
		WillReturnRows(draftRows("d1", "user-1", "T", "body", ""))

	ctx, _ := newHandlerContext(t, http.MethodPost, "/api/drafts/d1/schema/generate", `{}`)
	ctx.SetParamNames("id")
	ctx.SetParamValues("d1")

	err = handler.generate(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
