package diff

import "fmt"

// Granularity selects how changed lines are rendered.
type Granularity string

const (
	GranularityLine Granularity = "line"
	GranularityWord Granularity = "word"
)

// Cell is one side of a rendered row. Tokens is populated only at word
// granularity and only for changed rows.
type Cell struct {
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens,omitempty"`
}

// Row pairs the two sides of one line index.
type Row struct {
	Left    Cell `json:"left"`
	Right   Cell `json:"right"`
	Changed bool `json:"changed"`
}

// SideBySide is the renderable comparison of a base/revision pair.
type SideBySide struct {
	Granularity Granularity `json:"granularity"`
	Rows        []Row       `json:"rows"`
}

// Present composes the line diff and, at word granularity, the token diff
// into a renderable structure. Word-level alignment runs on changed rows
// only; unchanged rows stay whole-line records.
func Present(base, revision string, g Granularity) (SideBySide, error) {
	switch g {
	case GranularityLine, GranularityWord:
	default:
		return SideBySide{}, fmt.Errorf("unknown diff granularity %q", g)
	}

	left, right := Lines(base, revision)
	out := SideBySide{Granularity: g, Rows: make([]Row, len(left))}
	for i := range left {
		row := Row{
			Left:    Cell{Text: left[i].Text},
			Right:   Cell{Text: right[i].Text},
			Changed: left[i].Changed,
		}
		if g == GranularityWord && row.Changed {
			row.Left.Tokens, row.Right.Tokens = Words(left[i].Text, right[i].Text)
		}
		out.Rows[i] = row
	}
	return out, nil
}
