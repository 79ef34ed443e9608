// Package audit talks to the external content-quality scoring service.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"optipress/internal/httpx"
)

// Scorer produces an overall quality score for a document at a URL.
// Implementations may fail; callers running inside the publish verifier
// must downgrade failures rather than propagate them.
type Scorer interface {
	Score(ctx context.Context, url, body string) (float64, error)
}

// HTTPScorer calls a remote audit endpoint.
type HTTPScorer struct {
	endpoint string
	apiKey   string
	http     *httpx.Client
}

func NewHTTPScorer(endpoint, apiKey string, timeout time.Duration, retries int) *HTTPScorer {
	return &HTTPScorer{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     httpx.NewClient(timeout, retries, 0),
	}
}

type scoreRequest struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

type scoreResponse struct {
	OverallScore float64 `json:"overall_score"`
}

func (s *HTTPScorer) Score(ctx context.Context, url, body string) (float64, error) {
	if s.endpoint == "" {
		return 0, fmt.Errorf("audit endpoint not configured")
	}
	headers := map[string]string{}
	if s.apiKey != "" {
		headers["Authorization"] = "Bearer " + s.apiKey
	}
	var resp scoreResponse
	if err := s.http.DoJSON(ctx, "POST", s.endpoint+"/v1/score", headers, scoreRequest{URL: url, Content: body}, &resp); err != nil {
		return 0, fmt.Errorf("audit score: %w", err)
	}
	return resp.OverallScore, nil
}
