package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogueFile = "../../rules/catalogue.yaml"

func TestLoad_ShippedCatalogue(t *testing.T) {
	cat, err := Load(catalogueFile)
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", cat.Version)
	assert.Equal(t, "AU", cat.Settings.Jurisdiction)
	assert.InDelta(t, 0.8, cat.Settings.MatchThreshold, 1e-9)

	var ids []string
	for _, r := range cat.Enabled() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{
		"epd_validity", "material_traceability", "ncc_embodied_carbon", "transport_verification",
		"waste_circularity", "data_quality", "temporal_validity", "scope_boundary",
		"double_counting", "evidence_linkage",
	}, ids)
	assert.Equal(t, catalogueFile, cat.Source())
	assert.Contains(t, cat.Digest(), "sha256:")

	r, ok := cat.Rule("epd_validity")
	require.True(t, ok)
	assert.Equal(t, "Procurement", r.Remediation.ResponsibleParty)
	assert.Equal(t, []string{"https://epd-australasia.com"}, r.Remediation.Remediation().Resources)
}

func TestParse_DefaultsAndIgnoredEntries(t *testing.T) {
	doc := `
- just a string
- 42
- rule_id: a
  name: A
  remediation: {action: fix, responsible_party: someone}
- rule_id: b
  name: B
  enabled: false
`
	cat, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, cat.Version)
	require.Len(t, cat.Rules, 2)
	assert.True(t, cat.Rules[0].IsEnabled(), "enabled defaults to true")
	assert.False(t, cat.Rules[1].IsEnabled())
	require.Len(t, cat.Enabled(), 1)
	assert.Equal(t, 4, cat.Rules[0].Line())
	assert.False(t, cat.Rules[1].HasConditions())
	assert.Nil(t, cat.Rules[1].ConditionsMap())
}

func TestParse_ConfigErrors(t *testing.T) {
	cases := map[string]string{
		"not a list":        "rule_id: a\nname: A\n",
		"empty document":    "",
		"malformed":         "- [unclosed",
		"empty rule id":     "- rule_id: ''\n  name: A\n",
		"missing rule id":   "- name: Orphan\n  conditions: {x: 1}\n",
		"duplicate rule id": "- rule_id: a\n- rule_id: a\n",
		"bad version":       "- version: next\n- rule_id: a\n",
		"two versions":      "- version: 1.0.0\n- version: 1.1.0\n",
		"bad guard":         "- rule_id: a\n  applies_when: 'project.type =='\n",
		"non-bool guard":    "- rule_id: a\n  applies_when: '1 + 2'\n",
		"bad threshold":     "- global_settings: {match_threshold: 2}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ConfigError, got %T: %v", err, err)
			}
		})
	}
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Source: "c.yaml", Line: 7, RuleID: "x", Msg: "duplicate rule_id"}
	assert.Equal(t, `rules: c.yaml:7: rule "x": duplicate rule_id`, err.Error())

	inner := errors.New("boom")
	err = &ConfigError{Line: 3, Msg: "invalid", Err: inner}
	assert.Equal(t, "rules: line 3: invalid: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeConditions(t *testing.T) {
	cat, err := Parse([]byte(`
- rule_id: t
  conditions:
    tolerance_days: 14
    sources: [a, b]
- rule_id: typo
  conditions:
    tolerance_dayz: 14
`))
	require.NoError(t, err)

	type cond struct {
		ToleranceDays int      `yaml:"tolerance_days"`
		Sources       []string `yaml:"sources"`
	}

	var c cond
	require.NoError(t, cat.Rules[0].DecodeConditions(&c))
	assert.Equal(t, 14, c.ToleranceDays)
	assert.Equal(t, []string{"a", "b"}, c.Sources)
	assert.Equal(t, 14, cat.Rules[0].ConditionsMap()["tolerance_days"])

	var bad cond
	err = cat.Rules[1].DecodeConditions(&bad)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "typo", ce.RuleID)

	untouched := cond{ToleranceDays: 30}
	require.NoError(t, Rule{ID: "none"}.DecodeConditions(&untouched))
	assert.Equal(t, 30, untouched.ToleranceDays)
}

func TestGuard(t *testing.T) {
	cat, err := Parse([]byte(`
- rule_id: big_commercial
  applies_when: project.type == "commercial" && project.gross_floor_area_m2 > 500.0
`))
	require.NoError(t, err)
	r := cat.Rules[0]

	ok, err := r.Applies(Facts{Project: map[string]any{"type": "commercial", "gross_floor_area_m2": 1000.0}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Applies(Facts{Project: map[string]any{"type": "residential", "gross_floor_area_m2": 1000.0}})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.Applies(Facts{})
	assert.Error(t, err, "missing keys are an evaluation error")

	ok, err = Rule{ID: "plain"}.Applies(Facts{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGuard_EvaluationDate(t *testing.T) {
	g, err := CompileGuard(`evaluation_date >= "2025-01-01"`)
	require.NoError(t, err)
	ok, err := g.Allows(Facts{EvaluationDate: "2025-03-01"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `evaluation_date >= "2025-01-01"`, g.String())
}

func TestDiff(t *testing.T) {
	old, err := Parse([]byte(`
- version: 1.0.0
- rule_id: keep
  name: Keep
  conditions: {a: 1}
- rule_id: gone
  name: Gone
- rule_id: edit
  name: Edit
  conditions: {a: 1}
`))
	require.NoError(t, err)

	same, err := Parse([]byte(`
- version: 1.0.0
- rule_id: keep
  name: Keep
  conditions:
    a: 1
- rule_id: edit
  name: Edit renamed
  conditions: {a: 2}
- rule_id: fresh
  name: Fresh
`))
	require.NoError(t, err)

	d := Diff(old, same)
	assert.Equal(t, []Change{
		{RuleID: "edit", Kind: RuleModified, Fields: []string{"name", "conditions"}},
		{RuleID: "fresh", Kind: RuleAdded},
		{RuleID: "gone", Kind: RuleRemoved},
	}, d.Changes)
	assert.False(t, d.VersionBumped)
	assert.True(t, d.NeedsBump())

	bumped := *same
	bumped.Version = "1.1.0"
	d = Diff(old, &bumped)
	assert.True(t, d.VersionBumped)
	assert.False(t, d.NeedsBump())

	assert.Empty(t, Diff(old, old).Changes)
	assert.False(t, Diff(old, old).NeedsBump())
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- version: 1.0.0\n- rule_id: a\n"), 0o600))

	initial, err := Load(path)
	require.NoError(t, err)

	reloaded := make(chan *Catalogue, 4)
	w, err := NewWatcher(path, initial, func(c *Catalogue) error {
		reloaded <- c
		return nil
	}, nil)
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	// An invalid document is rejected and the previous catalogue kept.
	require.NoError(t, os.WriteFile(path, []byte("- rule_id: ''\n"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, initial, w.Current())

	require.NoError(t, os.WriteFile(path, []byte("- version: 1.1.0\n- rule_id: a\n- rule_id: b\n"), 0o600))
	select {
	case c := <-reloaded:
		assert.Equal(t, "1.1.0", c.Version)
		assert.Len(t, c.Rules, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("catalogue was not reloaded")
	}
	assert.Equal(t, "1.1.0", w.Current().Version)
}
