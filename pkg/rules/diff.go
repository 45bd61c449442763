package rules

import (
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"
)

// ChangeKind classifies a rule difference between two catalogues.
type ChangeKind string

const (
	RuleAdded    ChangeKind = "added"
	RuleRemoved  ChangeKind = "removed"
	RuleModified ChangeKind = "modified"
)

// Change is one rule-level difference.
type Change struct {
	RuleID string     `json:"rule_id"`
	Kind   ChangeKind `json:"kind"`
	Fields []string   `json:"fields,omitempty"`
}

// DiffResult compares two catalogues.
type DiffResult struct {
	OldVersion    string   `json:"old_version"`
	NewVersion    string   `json:"new_version"`
	Changes       []Change `json:"changes"`
	VersionBumped bool     `json:"version_bumped"`
}

// NeedsBump reports rule changes shipped without a higher catalogue version.
func (d DiffResult) NeedsBump() bool {
	return len(d.Changes) > 0 && !d.VersionBumped
}

// Diff lists the rules added, removed or modified between old and updated,
// sorted by rule id.
func Diff(old, updated *Catalogue) DiffResult {
	res := DiffResult{OldVersion: old.Version, NewVersion: updated.Version}
	if ov, nv := old.SemVer(), updated.SemVer(); ov != nil && nv != nil {
		res.VersionBumped = nv.GreaterThan(ov)
	}

	before := make(map[string]Rule, len(old.Rules))
	for _, r := range old.Rules {
		before[r.ID] = r
	}
	after := make(map[string]Rule, len(updated.Rules))
	for _, r := range updated.Rules {
		after[r.ID] = r
		prev, ok := before[r.ID]
		if !ok {
			res.Changes = append(res.Changes, Change{RuleID: r.ID, Kind: RuleAdded})
			continue
		}
		if fields := changedFields(prev, r); len(fields) > 0 {
			res.Changes = append(res.Changes, Change{RuleID: r.ID, Kind: RuleModified, Fields: fields})
		}
	}
	for _, r := range old.Rules {
		if _, ok := after[r.ID]; !ok {
			res.Changes = append(res.Changes, Change{RuleID: r.ID, Kind: RuleRemoved})
		}
	}

	sort.SliceStable(res.Changes, func(i, j int) bool {
		return res.Changes[i].RuleID < res.Changes[j].RuleID
	})
	return res
}

func changedFields(a, b Rule) []string {
	var fields []string
	if a.Name != b.Name {
		fields = append(fields, "name")
	}
	if a.IsEnabled() != b.IsEnabled() {
		fields = append(fields, "enabled")
	}
	if a.AppliesWhen != b.AppliesWhen {
		fields = append(fields, "applies_when")
	}
	if !reflect.DeepEqual(a.Standards, b.Standards) {
		fields = append(fields, "standards")
	}
	if nodeText(&a.Conditions) != nodeText(&b.Conditions) {
		fields = append(fields, "conditions")
	}
	if !reflect.DeepEqual(a.Remediation, b.Remediation) {
		fields = append(fields, "remediation")
	}
	return fields
}

// nodeText renders a node in a layout-independent form so that reformatting
// a payload is not reported as a change.
func nodeText(n *yaml.Node) string {
	if n.Kind == 0 {
		return ""
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return ""
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return string(out)
}
