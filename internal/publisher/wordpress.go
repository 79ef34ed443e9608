// Package publisher pushes accepted content to the external publishing
// target. Publishing is allowed to fail loudly; post-publish verification
// is a separate, best-effort concern.
package publisher

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"optipress/internal/httpx"
)

// Result is the permanent location a publish action produced.
type Result struct {
	ID        int64  `json:"id"`
	Permalink string `json:"permalink,omitempty"`
}

// Publisher accepts a title/body pair and returns a permanent location.
type Publisher interface {
	Publish(ctx context.Context, title, body string) (Result, error)
}

// WordPress publishes posts through the WordPress REST API using an
// application password.
type WordPress struct {
	siteURL  string
	username string
	appPass  string
	status   string
	http     *httpx.Client
}

func NewWordPress(siteURL, username, appPassword, status string, timeout time.Duration) *WordPress {
	if status == "" {
		status = "publish"
	}
	return &WordPress{
		siteURL:  strings.TrimRight(siteURL, "/"),
		username: username,
		appPass:  appPassword,
		status:   status,
		http:     httpx.NewClient(timeout, 1, 0),
	}
}

type wpPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

type wpPostResponse struct {
	ID   int64  `json:"id"`
	Link string `json:"link"`
}

func (w *WordPress) Publish(ctx context.Context, title, body string) (Result, error) {
	if w.siteURL == "" {
		return Result{}, fmt.Errorf("wordpress site url not configured")
	}
	auth := base64.StdEncoding.EncodeToString([]byte(w.username + ":" + w.appPass))
	headers := map[string]string{"Authorization": "Basic " + auth}

	var resp wpPostResponse
	err := w.http.DoJSON(ctx, "POST", w.siteURL+"/wp-json/wp/v2/posts", headers,
		wpPostRequest{Title: title, Content: body, Status: w.status}, &resp)
	if err != nil {
		return Result{}, fmt.Errorf("wordpress publish: %w", err)
	}
	if resp.ID == 0 {
		return Result{}, fmt.Errorf("wordpress publish: response missing post id")
	}
	return Result{ID: resp.ID, Permalink: resp.Link}, nil
}
