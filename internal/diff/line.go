// Package diff compares an original document against its machine-revised
// candidate for side-by-side display.
//
// The line diff is positional: line i of the base is always paired with
// line i of the revision, so an inserted or deleted line shifts every
// following pair into the changed state. This is a deliberate trade-off
// for stable, reproducible output; it is not an edit-script diff.
package diff

import "strings"

// LineRecord is one side of a positionally aligned line pair.
type LineRecord struct {
	Text    string `json:"text"`
	Changed bool   `json:"changed"`
}

// Lines splits both documents on newlines and classifies each aligned pair.
// The returned slices always have equal length: max(lines(base), lines(revision)).
// A side that runs out of lines is padded with empty strings, so trailing
// blank lines still produce records. The Changed flag is a property of the
// pair and is identical at the same index on both sides.
func Lines(base, revision string) ([]LineRecord, []LineRecord) {
	a := splitLines(base)
	b := splitLines(revision)

	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	if n == 0 {
		return nil, nil
	}

	left := make([]LineRecord, n)
	right := make([]LineRecord, n)
	for i := 0; i < n; i++ {
		var la, lb string
		if i < len(a) {
			la = a[i]
		}
		if i < len(b) {
			lb = b[i]
		}
		changed := la != lb
		left[i] = LineRecord{Text: la, Changed: changed}
		right[i] = LineRecord{Text: lb, Changed: changed}
	}
	return left, right
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
