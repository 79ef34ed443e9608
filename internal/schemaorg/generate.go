// Package schemaorg generates and validates schema.org JSON-LD for
// published documents.
package schemaorg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"optipress/internal/httpx"
)

// Generator produces a JSON-LD document describing a page. May fail.
type Generator interface {
	Generate(ctx context.Context, url, contentType, body string, acceptedEntities []string, siteName string) (string, error)
}

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIGenerator drafts JSON-LD with a chat-completion model.
type OpenAIGenerator struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	baseURL     string
	http        *httpx.Client
}

func NewOpenAIGenerator(apiKey, model string, temperature float64, maxTokens int, timeout time.Duration) *OpenAIGenerator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIGenerator{
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		baseURL:     defaultOpenAIBaseURL,
		http:        httpx.NewClient(timeout, 1, 0),
	}
}

// WithBaseURL points the generator at an alternate API host.
func (g *OpenAIGenerator) WithBaseURL(base string) *OpenAIGenerator {
	g.baseURL = strings.TrimRight(base, "/")
	return g
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, url, contentType, body string, acceptedEntities []string, siteName string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("openai api key not configured")
	}

	system := "You generate schema.org structured data. Respond with a single valid JSON-LD object and nothing else."
	var sb strings.Builder
	fmt.Fprintf(&sb, "Page URL: %s\nContent type: %s\n", url, contentType)
	if siteName != "" {
		fmt.Fprintf(&sb, "Site name: %s\n", siteName)
	}
	if len(acceptedEntities) > 0 {
		fmt.Fprintf(&sb, "Entities to include: %s\n", strings.Join(acceptedEntities, ", "))
	}
	sb.WriteString("\nContent:\n")
	sb.WriteString(body)

	req := chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: sb.String()}},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + g.apiKey}

	var resp chatResponse
	if err := g.http.DoJSON(ctx, "POST", g.baseURL+"/v1/chat/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("schema generation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("schema generation: empty response")
	}
	out := extractJSON(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("schema generation: response contained no JSON object")
	}
	return out, nil
}

// extractJSON pulls the first top-level JSON object out of a model reply,
// tolerating markdown fences around it.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if fenced := strings.TrimPrefix(s, "```json"); fenced != s {
		s = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	} else if fenced := strings.TrimPrefix(s, "```"); fenced != s {
		s = strings.TrimSuffix(strings.TrimSpace(fenced), "```")
	}
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return ""
	}
	return candidate
}
