// Package match reconciles material names across sources that share no identifier.
//
// Similarity is the longest-matching-block ratio (2*M/T) computed by difflib's
// SequenceMatcher over the characters of the two normalized strings.
package match

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the minimum ratio accepted as a match.
const DefaultThreshold = 0.8

// Normalize composes s to NFC, case-folds it and trims surrounding space.
func Normalize(s string) string {
	// cases.Caser keeps state; one per call keeps Normalize safe for concurrent use.
	return strings.TrimSpace(cases.Fold().String(norm.NFC.String(s)))
}

// Ratio returns the similarity of a and b after normalization, in [0, 1].
// It is deterministic but not symmetric: a is the query and b the candidate.
func Ratio(a, b string) float64 {
	return ratio(Normalize(a), Normalize(b))
}

func ratio(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// Match is an accepted candidate.
type Match struct {
	Candidate string
	Index     int
	Ratio     float64
}

// Matcher finds the closest candidate above a threshold.
type Matcher struct {
	Threshold float64
}

// New returns a Matcher. A non-positive threshold selects DefaultThreshold.
func New(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Best returns the candidate most similar to query.
//
// Candidates are scanned in order; a later candidate replaces the current best
// only with a strictly greater ratio, and is accepted only when its ratio is at
// least the threshold. Ties therefore resolve to the earliest candidate.
func (m Matcher) Best(query string, candidates []string) (Match, bool) {
	q := Normalize(query)
	best := Match{Index: -1}
	for i, c := range candidates {
		r := ratio(q, Normalize(c))
		if r > best.Ratio && r >= m.Threshold {
			best = Match{Candidate: c, Index: i, Ratio: r}
		}
	}
	return best, best.Index >= 0
}

// Best is shorthand for New(threshold).Best(query, candidates).
func Best(query string, candidates []string, threshold float64) (Match, bool) {
	return New(threshold).Best(query, candidates)
}
