// Package rules loads the compliance rule catalogue: a YAML sequence whose
// mapping entries are rule descriptors, plus optional global settings and a
// catalogue version.
//
// The loader validates structure only. Each rule's conditions payload stays
// opaque until the check that owns the rule decodes it with DecodeConditions.
package rules

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
)

// DefaultVersion is the catalogue version assumed when the document has none.
const DefaultVersion = "1.0.0"

// ConfigError reports a structural problem in a rule catalogue. An engine must
// not start with a catalogue that produced one.
type ConfigError struct {
	Source string // file path, when known
	Line   int    // 1-based YAML line, when known
	RuleID string
	Msg    string
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("rules: ")
	if e.Source != "" {
		b.WriteString(e.Source)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	} else if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.RuleID != "" {
		fmt.Fprintf(&b, "rule %q: ", e.RuleID)
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RemediationTemplate is the guidance copied onto a rule's findings.
type RemediationTemplate struct {
	Action           string   `yaml:"action" json:"action"`
	ResponsibleParty string   `yaml:"responsible_party" json:"responsible_party"`
	Resources        []string `yaml:"resources,omitempty" json:"resources,omitempty"`
}

// Remediation converts the template into finding guidance.
func (t RemediationTemplate) Remediation() findings.Remediation {
	var res []string
	if len(t.Resources) > 0 {
		res = append([]string(nil), t.Resources...)
	}
	return findings.Remediation{Action: t.Action, ResponsibleParty: t.ResponsibleParty, Resources: res}
}

// Rule is one catalogue entry. It is never modified after loading.
type Rule struct {
	ID          string              `yaml:"rule_id" json:"rule_id"`
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string              `yaml:"category,omitempty" json:"category,omitempty"`
	Standards   []string            `yaml:"standards,omitempty" json:"standards,omitempty"`
	Enabled     *bool               `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	AppliesWhen string              `yaml:"applies_when,omitempty" json:"applies_when,omitempty"`
	Conditions  yaml.Node           `yaml:"conditions,omitempty" json:"-"`
	Remediation RemediationTemplate `yaml:"remediation" json:"remediation"`

	line  int
	guard *Guard
}

// IsEnabled reports the enabled flag, which defaults to true.
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Line is the YAML line the rule was defined on.
func (r Rule) Line() int { return r.line }

// HasConditions reports whether the rule carries a conditions payload.
func (r Rule) HasConditions() bool {
	return r.Conditions.Kind != 0
}

// DecodeConditions decodes the conditions payload into v. Unknown keys are an
// error, so a misspelled threshold cannot be silently ignored. A rule without
// conditions leaves v untouched.
func (r Rule) DecodeConditions(v any) error {
	if !r.HasConditions() {
		return nil
	}
	raw, err := yaml.Marshal(&r.Conditions)
	if err != nil {
		return &ConfigError{Line: r.Conditions.Line, RuleID: r.ID, Msg: "re-encode conditions", Err: err}
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &ConfigError{Line: r.Conditions.Line, RuleID: r.ID, Msg: "invalid conditions", Err: err}
	}
	return nil
}

// ConditionsMap returns the conditions payload as generic values, for display.
func (r Rule) ConditionsMap() map[string]any {
	if !r.HasConditions() {
		return nil
	}
	var m map[string]any
	if err := r.Conditions.Decode(&m); err != nil {
		return nil
	}
	return m
}

// Applies evaluates the rule's applies_when guard against facts. A rule
// without a guard always applies.
func (r Rule) Applies(facts Facts) (bool, error) {
	if r.guard == nil {
		return true, nil
	}
	return r.guard.Allows(facts)
}

// GlobalSettings holds catalogue-wide options.
type GlobalSettings struct {
	// MatchThreshold is the fuzzy-match threshold checks use when their own
	// conditions do not set one.
	MatchThreshold float64 `yaml:"match_threshold,omitempty" json:"match_threshold,omitempty"`
	// Timezone names the IANA zone whose calendar date is the default
	// evaluation date.
	Timezone     string         `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	Jurisdiction string         `yaml:"jurisdiction,omitempty" json:"jurisdiction,omitempty"`
	Extra        map[string]any `yaml:",inline" json:"extra,omitempty"`
}

// Catalogue is a loaded, structurally valid rule set.
type Catalogue struct {
	Version  string
	Settings GlobalSettings
	Rules    []Rule

	source string
	digest string
}

// Enabled returns the enabled rules in catalogue order.
func (c *Catalogue) Enabled() []Rule {
	out := make([]Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		if r.IsEnabled() {
			out = append(out, r)
		}
	}
	return out
}

// Rule looks up a rule by id.
func (c *Catalogue) Rule(id string) (Rule, bool) {
	for _, r := range c.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Digest is "sha256:<hex>" over the catalogue document bytes.
func (c *Catalogue) Digest() string { return c.digest }

// Source is the path the catalogue was loaded from, if any.
func (c *Catalogue) Source() string { return c.source }

// SemVer returns the parsed catalogue version.
func (c *Catalogue) SemVer() *semver.Version {
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return nil
	}
	return v
}

// Load reads and parses the catalogue at path.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied catalogue path
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return parse(data, path)
}

// Parse parses a catalogue document held in memory.
func Parse(data []byte) (*Catalogue, error) {
	return parse(data, "")
}

var ruleShapedKeys = []string{"name", "conditions", "remediation", "applies_when"}

func parse(data []byte, source string) (*Catalogue, error) {
	fail := func(line int, ruleID, msg string, err error) error {
		return &ConfigError{Source: source, Line: line, RuleID: ruleID, Msg: msg, Err: err}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fail(0, "", "malformed YAML", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fail(0, "", "document is empty", nil)
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, fail(root.Line, "", "document must be a list of entries", nil)
	}

	sum := sha256.Sum256(data)
	cat := &Catalogue{source: source, digest: "sha256:" + hex.EncodeToString(sum[:])}
	seen := make(map[string]int)
	var haveSettings, haveVersion bool

	for _, entry := range root.Content {
		if entry.Kind != yaml.MappingNode {
			continue
		}
		switch {
		case hasKey(entry, "rule_id"):
			var r Rule
			if err := entry.Decode(&r); err != nil {
				return nil, fail(entry.Line, "", "invalid rule entry", err)
			}
			r.ID = strings.TrimSpace(r.ID)
			if r.ID == "" {
				return nil, fail(entry.Line, "", "rule entry has an empty rule_id", nil)
			}
			if first, dup := seen[r.ID]; dup {
				return nil, fail(entry.Line, r.ID, fmt.Sprintf("duplicate rule_id (first defined on line %d)", first), nil)
			}
			seen[r.ID] = entry.Line
			r.line = entry.Line
			if r.AppliesWhen != "" {
				g, err := CompileGuard(r.AppliesWhen)
				if err != nil {
					return nil, fail(entry.Line, r.ID, "invalid applies_when", err)
				}
				r.guard = g
			}
			cat.Rules = append(cat.Rules, r)

		case hasKey(entry, "global_settings"):
			if haveSettings {
				return nil, fail(entry.Line, "", "global_settings defined more than once", nil)
			}
			haveSettings = true
			var wrapper struct {
				Settings GlobalSettings `yaml:"global_settings"`
			}
			if err := entry.Decode(&wrapper); err != nil {
				return nil, fail(entry.Line, "", "invalid global_settings", err)
			}
			cat.Settings = wrapper.Settings

		case hasKey(entry, "version"):
			if haveVersion {
				return nil, fail(entry.Line, "", "version defined more than once", nil)
			}
			haveVersion = true
			var wrapper struct {
				Version string `yaml:"version"`
			}
			if err := entry.Decode(&wrapper); err != nil {
				return nil, fail(entry.Line, "", "invalid version", err)
			}
			cat.Version = strings.TrimSpace(wrapper.Version)

		case hasAnyKey(entry, ruleShapedKeys...):
			return nil, fail(entry.Line, "", "rule entry is missing rule_id", nil)
		}
	}

	if cat.Version == "" {
		cat.Version = DefaultVersion
	}
	if _, err := semver.NewVersion(cat.Version); err != nil {
		return nil, fail(0, "", fmt.Sprintf("version %q is not a semantic version", cat.Version), err)
	}
	if cat.Settings.MatchThreshold < 0 || cat.Settings.MatchThreshold > 1 {
		return nil, fail(0, "", "global_settings.match_threshold must be within [0, 1]", nil)
	}
	return cat, nil
}

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}

func hasAnyKey(m *yaml.Node, keys ...string) bool {
	for _, k := range keys {
		if hasKey(m, k) {
			return true
		}
	}
	return false
}
