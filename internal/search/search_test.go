package search

import (
	"strings"
	"testing"

	"optipress/internal/store"
)

func TestIndexAndSearch(t *testing.T) {
	idx, err := NewIndex()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	drafts := []store.Draft{
		{ID: "d1", UserID: "u1", Title: "Caring for cats", OriginalBody: "A guide to feline health and grooming."},
		{ID: "d2", UserID: "u1", Title: "Dog training basics", OriginalBody: "Positive reinforcement for puppies."},
	}
	for _, d := range drafts {
		if err := idx.IndexDraft(d); err != nil {
			t.Fatalf("index %s: %v", d.ID, err)
		}
	}

	hits, err := idx.Search("u1", "feline", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].DraftID != "d1" {
		t.Fatalf("expected d1, got %+v", hits)
	}
	if hits[0].Rank != 1 || hits[0].Title != "Caring for cats" {
		t.Fatalf("unexpected hit metadata: %+v", hits[0])
	}
}

func TestSearchScopedToOwner(t *testing.T) {
	idx, err := NewIndex()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := idx.IndexDraft(store.Draft{ID: "a1", UserID: "alice", Title: "Q3 plans", OriginalBody: "confidential merger plans"}); err != nil {
		t.Fatalf("index alice: %v", err)
	}
	if err := idx.IndexDraft(store.Draft{ID: "b1", UserID: "bob", Title: "Gardening", OriginalBody: "tomato varieties"}); err != nil {
		t.Fatalf("index bob: %v", err)
	}

	hits, err := idx.Search("bob", "confidential merger", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("another user's drafts surfaced: %+v", hits)
	}

	hits, err = idx.Search("alice", "confidential merger", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].DraftID != "a1" {
		t.Fatalf("owner should see own draft, got %+v", hits)
	}
	if hits[0].Rank != 1 {
		t.Fatalf("rank should count only visible hits, got %d", hits[0].Rank)
	}
}

func TestIndexDraftPrefersOptimizedBody(t *testing.T) {
	idx, err := NewIndex()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	d := store.Draft{ID: "d1", UserID: "u1", Title: "Post", OriginalBody: "plain text", OptimizedBody: "rewritten with keywords"}
	if err := idx.IndexDraft(d); err != nil {
		t.Fatalf("index: %v", err)
	}
	hits, err := idx.Search("u1", "rewritten", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected optimized body indexed, got %+v", hits)
	}
	if !strings.Contains(hits[0].Snippet, "rewritten") {
		t.Fatalf("snippet should come from optimized body: %q", hits[0].Snippet)
	}
}

func TestRemove(t *testing.T) {
	idx, err := NewIndex()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := idx.IndexDraft(store.Draft{ID: "d1", UserID: "u1", Title: "T", OriginalBody: "searchable content"}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if err := idx.Remove("d1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	hits, err := idx.Search("u1", "searchable", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits after remove, got %+v", hits)
	}
}

func TestSnippetTruncation(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := snippet(long)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected snippet length %d", len(got))
	}
}
