package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/rules"
)

func configErr(rule rules.Rule, format string, args ...any) error {
	return &rules.ConfigError{Line: rule.Line(), RuleID: rule.ID, Msg: fmt.Sprintf(format, args...)}
}

// decimalOr converts an optional YAML number, falling back to def.
func decimalOr(v *float64, def string) decimal.Decimal {
	if v == nil {
		return decimal.RequireFromString(def)
	}
	return decimal.NewFromFloat(*v)
}

// bounds is an inclusive [min, max] range in a conditions payload.
type bounds struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

type decimalRange struct {
	lo, hi decimal.Decimal
}

func (b *bounds) resolve(rule rules.Rule, name, defMin, defMax string) (decimalRange, error) {
	var r decimalRange
	if b == nil {
		b = &bounds{}
	}
	r.lo = decimalOr(b.Min, defMin)
	r.hi = decimalOr(b.Max, defMax)
	if r.lo.GreaterThan(r.hi) {
		return r, configErr(rule, "%s: min %s exceeds max %s", name, r.lo, r.hi)
	}
	return r, nil
}

func (r decimalRange) contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(r.lo) && v.LessThanOrEqual(r.hi)
}

func (r decimalRange) String() string {
	return r.lo.String() + "-" + r.hi.String()
}

func requireNonNegative(rule rules.Rule, name string, v decimal.Decimal) error {
	if v.IsNegative() {
		return configErr(rule, "%s must not be negative", name)
	}
	return nil
}
