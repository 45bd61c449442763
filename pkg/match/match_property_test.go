//go:build property
// +build property

package match

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRatioBounds verifies the ratio is deterministic and bounded.
// Property: 0 <= Ratio(a, b) <= 1 and Ratio(a, b) == Ratio(a, b)
func TestRatioBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("ratio is bounded and deterministic", prop.ForAll(
		func(a, b string) bool {
			r := Ratio(a, b)
			return r >= 0 && r <= 1 && r == Ratio(a, b)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestSelfMatch verifies a string always matches itself, whatever its case.
func TestSelfMatch(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("case-folded copy is an exact match", prop.ForAll(
		func(s string) bool {
			m, ok := Best(s, []string{"  " + s + "  "}, DefaultThreshold)
			return ok && m.Ratio == 1.0
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
