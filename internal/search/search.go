// Package search keeps an in-memory full-text index over drafts so the
// API can answer keyword queries without hitting Postgres.
package search

import (
	"sync"

	"github.com/blevesearch/bleve"

	"optipress/internal/store"
)

type Hit struct {
	DraftID string  `json:"draft_id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

type doc struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Index wraps a memory-only bleve index keyed by draft ID.
type Index struct {
	bleve bleve.Index
	meta  map[string]doc
	mu    sync.RWMutex
}

func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, meta: make(map[string]doc)}, nil
}

// IndexDraft adds or replaces a draft in the index. The optimized body
// wins over the original when present.
func (x *Index) IndexDraft(d store.Draft) error {
	body := d.OptimizedBody
	if body == "" {
		body = d.OriginalBody
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	dd := doc{UserID: d.UserID, Title: d.Title, Body: body}
	x.meta[d.ID] = dd
	return x.bleve.Index(d.ID, dd)
}

func (x *Index) Remove(draftID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.meta, draftID)
	return x.bleve.Delete(draftID)
}

// Search returns hits owned by userID only. Other users' drafts share
// the index but never surface in the results.
func (x *Index) Search(userID, q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	x.mu.RLock()
	defer x.mu.RUnlock()
	res, err := x.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	var out []Hit
	for _, hit := range res.Hits {
		d := x.meta[hit.ID]
		if d.UserID != userID {
			continue
		}
		out = append(out, Hit{
			DraftID: hit.ID,
			Title:   d.Title,
			Snippet: snippet(d.Body),
			Score:   hit.Score,
			Rank:    len(out) + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func snippet(text string) string {
	const max = 200
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
