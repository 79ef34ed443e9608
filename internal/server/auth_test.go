package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestWithAuthValidToken(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-9", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	var gotUser string
	h := withAuth(func(c echo.Context) error {
		gotUser = c.Get("user_id").(string)
		return c.NoContent(http.StatusOK)
	}, secret)

	if err := h(ctx); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if gotUser != "user-9" {
		t.Fatalf("expected subject user-9, got %q", gotUser)
	}
}

func TestWithAuthMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	h := withAuth(func(c echo.Context) error { return nil }, []byte("secret"))
	err := h(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestWithAuthWrongSecret(t *testing.T) {
	tok, err := SignJWT("user-9", []byte("secret-a"), time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	h := withAuth(func(c echo.Context) error { return nil }, []byte("secret-b"))
	err = h(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestWithAuthCookieToken(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := SignJWT("user-3", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: tok})
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	h := withAuth(func(c echo.Context) error { return c.NoContent(http.StatusOK) }, secret)
	if err := h(ctx); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got := ctx.Get("user_id").(string); got != "user-3" {
		t.Fatalf("expected user-3, got %q", got)
	}
}
