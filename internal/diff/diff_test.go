package diff

import (
	"strings"
	"testing"
)

func TestLinesLengthInvariant(t *testing.T) {
	t.Parallel()
	cases := []struct {
		base, revision string
		want           int
	}{
		{"", "", 0},
		{"one", "", 1},
		{"one\ntwo", "one", 2},
		{"a\nb\nc", "a\nb\nc\nd\ne", 5},
	}
	for _, tc := range cases {
		left, right := Lines(tc.base, tc.revision)
		if len(left) != tc.want || len(right) != tc.want {
			t.Fatalf("Lines(%q, %q): got %d/%d rows, want %d", tc.base, tc.revision, len(left), len(right), tc.want)
		}
		for i := range left {
			if left[i].Changed != right[i].Changed {
				t.Fatalf("row %d: changed flags disagree", i)
			}
			if left[i].Changed != (left[i].Text != right[i].Text) {
				t.Fatalf("row %d: changed flag does not match text inequality", i)
			}
		}
	}
}

func TestLinesPadsMissingSideWithEmpty(t *testing.T) {
	t.Parallel()
	left, right := Lines("a\nb", "a")
	if right[1].Text != "" || !right[1].Changed {
		t.Fatalf("expected padded empty changed line, got %+v", right[1])
	}
	if left[1].Text != "b" || !left[1].Changed {
		t.Fatalf("unexpected left record: %+v", left[1])
	}
}

func TestLinesTrailingBlankLines(t *testing.T) {
	t.Parallel()
	left, right := Lines("body\n", "body")
	if len(left) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(left))
	}
	if left[1].Text != "" || right[1].Text != "" {
		t.Fatalf("trailing blank line should produce empty-text records")
	}
	if left[1].Changed {
		t.Fatalf("two empty lines should compare equal")
	}
}

func TestLinesCRLF(t *testing.T) {
	t.Parallel()
	left, _ := Lines("a\r\nb", "a\nb")
	for i, rec := range left {
		if rec.Changed {
			t.Fatalf("row %d flagged changed across CRLF/LF inputs: %+v", i, rec)
		}
	}
}

func TestWordsReconstruction(t *testing.T) {
	t.Parallel()
	cases := [][2]string{
		{"It was red.", "It was blue."},
		{"  leading and\ttabs ", "trailing   runs  "},
		{"", "now populated"},
		{"same same", "same same"},
	}
	for _, tc := range cases {
		left, right := Words(tc[0], tc[1])
		if got := joinValues(left); got != tc[0] {
			t.Fatalf("left reconstruction: %q != %q", got, tc[0])
		}
		if got := joinValues(right); got != tc[1] {
			t.Fatalf("right reconstruction: %q != %q", got, tc[1])
		}
	}
}

func TestWordsEqualSubsequencesMatch(t *testing.T) {
	t.Parallel()
	left, right := Words("the quick brown fox", "the slow brown dog")
	var eqLeft, eqRight []string
	for _, tok := range left {
		if tok.Kind == TokenEqual {
			eqLeft = append(eqLeft, tok.Value)
		}
	}
	for _, tok := range right {
		if tok.Kind == TokenEqual {
			eqRight = append(eqRight, tok.Value)
		}
	}
	if strings.Join(eqLeft, "|") != strings.Join(eqRight, "|") {
		t.Fatalf("equal-token sequences differ: %v vs %v", eqLeft, eqRight)
	}
}

// Ties consume from the base side first, so the removed token precedes the
// added one in any interleaved rendering. Golden output depends on this.
func TestWordsTieBreakConsumesBaseFirst(t *testing.T) {
	t.Parallel()
	left, right := Words("x", "y")
	if len(left) != 1 || left[0].Kind != TokenRemoved {
		t.Fatalf("expected single removed token on left, got %+v", left)
	}
	if len(right) != 1 || right[0].Kind != TokenAdded {
		t.Fatalf("expected single added token on right, got %+v", right)
	}
}

func TestWordsSpecExample(t *testing.T) {
	t.Parallel()
	left, right := Words("It was red.", "It was blue.")
	wantKind := func(side []Token, value string, kind TokenKind) {
		t.Helper()
		for _, tok := range side {
			if tok.Value == value {
				if tok.Kind != kind {
					t.Fatalf("token %q: kind %s, want %s", value, tok.Kind, kind)
				}
				return
			}
		}
		t.Fatalf("token %q not found", value)
	}
	wantKind(left, "It", TokenEqual)
	wantKind(left, "was", TokenEqual)
	wantKind(left, "red.", TokenRemoved)
	wantKind(right, "blue.", TokenAdded)
}

func TestPresentLineGranularity(t *testing.T) {
	t.Parallel()
	got, err := Present("The cat sat.\nIt was red.", "The cat sat.\nIt was blue.", GranularityLine)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got.Rows))
	}
	if got.Rows[0].Changed || !got.Rows[1].Changed {
		t.Fatalf("unexpected changed flags: %+v", got.Rows)
	}
	if got.Rows[1].Left.Tokens != nil {
		t.Fatalf("line granularity must not produce tokens")
	}
}

func TestPresentWordGranularityTokenizesChangedRowsOnly(t *testing.T) {
	t.Parallel()
	got, err := Present("The cat sat.\nIt was red.", "The cat sat.\nIt was blue.", GranularityWord)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	if got.Rows[0].Left.Tokens != nil || got.Rows[0].Right.Tokens != nil {
		t.Fatalf("unchanged row must stay a whole-line record")
	}
	if got.Rows[1].Left.Tokens == nil || got.Rows[1].Right.Tokens == nil {
		t.Fatalf("changed row must carry token lists")
	}
}

func TestPresentUnknownGranularity(t *testing.T) {
	t.Parallel()
	if _, err := Present("a", "b", "paragraph"); err == nil {
		t.Fatalf("expected error for unknown granularity")
	}
}

func joinValues(tokens []Token) string {
	var b strings.Builder
	for _, tok := range tokens {
		b.WriteString(tok.Value)
	}
	return b.String()
}
