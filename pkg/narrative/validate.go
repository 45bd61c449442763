// Package narrative turns an evaluated report into prose through an external
// text generator, and polices the generator's output.
//
// Generated text may explain findings; it may not decide them. Validate
// rejects text that reads as an independent pass/fail determination, and
// Guard applies that check to every generator call.
package narrative

import (
	"fmt"
	"regexp"
	"strings"
)

var forbidden = []*regexp.Regexp{
	regexp.MustCompile(`(?i)this (passes|fails|is compliant|is non-compliant)`),
	regexp.MustCompile(`(?i)I (determine|conclude|find) that`),
	regexp.MustCompile(`(?i)(should be|must be) marked as (pass|fail)`),
	regexp.MustCompile(`(?i)my analysis (shows|indicates|suggests) (pass|fail)`),
	regexp.MustCompile(`(?i)based on (my|the) evaluation, this (passes|fails)`),
}

// firstPersonEvaluation catches decision language the patterns above miss.
var firstPersonEvaluation = []string{"i determined", "i evaluated"}

type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rewrites are applied in order.
var rewrites = []rewrite{
	{regexp.MustCompile(`(?i)I (determine|conclude|find) that`), "The rules engine determined that"},
	{regexp.MustCompile(`(?i)my analysis`), "the analysis"},
	{regexp.MustCompile(`(?i)based on my evaluation`), "based on the evaluation"},
	{regexp.MustCompile(`(?i)I (recommend|suggest)`), "It is recommended"},
}

// Validate returns one violation per forbidden phrase found in text, in
// pattern order. A nil result means the text is clean.
func Validate(text string) []string {
	var violations []string
	lower := strings.ToLower(text)
	for _, re := range forbidden {
		for _, m := range re.FindAllString(lower, -1) {
			violations = append(violations, fmt.Sprintf("Forbidden pattern found: '%s'", m))
		}
	}
	for _, phrase := range firstPersonEvaluation {
		if strings.Contains(lower, phrase) {
			violations = append(violations, "Text appears to make an independent evaluation")
			break
		}
	}
	return violations
}

// Sanitize rewrites first-person decision language into neutral phrasing.
// It does not remove every forbidden phrase; run Validate on the result.
func Sanitize(text string) string {
	for _, rw := range rewrites {
		text = rw.pattern.ReplaceAllString(text, rw.replacement)
	}
	return text
}
