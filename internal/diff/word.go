package diff

import "regexp"

// TokenKind classifies a token within a single diffed line pair.
type TokenKind string

const (
	TokenEqual   TokenKind = "equal"
	TokenRemoved TokenKind = "removed"
	TokenAdded   TokenKind = "added"
)

// Token is one whitespace- or word-run of a line. Concatenating the Values
// of one side, in order, reproduces that side's line exactly.
type Token struct {
	Value string    `json:"value"`
	Kind  TokenKind `json:"kind"`
}

// tokenPattern splits a line into alternating runs of whitespace and
// non-whitespace. Keeping whitespace runs as tokens makes the split lossless.
var tokenPattern = regexp.MustCompile(`\s+|\S+`)

// Words aligns the tokens of a single line pair on their longest common
// subsequence. Equal tokens appear on both sides; tokens only in lineA come
// back as removed, tokens only in lineB as added.
//
// The backtrack tie-break (dp[i+1][j] >= dp[i][j+1] consumes from the base
// side) is fixed: either choice yields a valid LCS, but golden tests depend
// on this one.
//
// Cost is O(len(a)*len(b)) in tokens, so callers should only invoke this on
// changed line pairs, never across a whole document.
func Words(lineA, lineB string) ([]Token, []Token) {
	a := tokenize(lineA)
	b := tokenize(lineB)
	n, m := len(a), len(b)

	// dp[i][j] = LCS length of a[i:] and b[j:], filled bottom-up.
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	var left, right []Token
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			left = append(left, Token{Value: a[i], Kind: TokenEqual})
			right = append(right, Token{Value: b[j], Kind: TokenEqual})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			left = append(left, Token{Value: a[i], Kind: TokenRemoved})
			i++
		default:
			right = append(right, Token{Value: b[j], Kind: TokenAdded})
			j++
		}
	}
	for ; i < n; i++ {
		left = append(left, Token{Value: a[i], Kind: TokenRemoved})
	}
	for ; j < m; j++ {
		right = append(right, Token{Value: b[j], Kind: TokenAdded})
	}
	return left, right
}

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	return tokenPattern.FindAllString(s, -1)
}
