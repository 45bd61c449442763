package narrative

import (
	"fmt"
	"strings"
)

// Kind selects the narrative to produce.
type Kind string

const (
	KindExecutiveSummary       Kind = "executive_summary"
	KindRemediationPlan        Kind = "remediation_plan"
	KindCertificationReadiness Kind = "certification_readiness"
	KindStakeholderUpdate      Kind = "stakeholder_update"
)

// Kinds lists every narrative kind.
var Kinds = []Kind{KindExecutiveSummary, KindRemediationPlan, KindCertificationReadiness, KindStakeholderUpdate}

// Audiences a stakeholder update can address.
var audiences = map[string]string{
	"executive": "senior executives (focus on business impact, risk, timeline)",
	"technical": "technical team members (focus on specific issues, data, actions)",
	"client":    "client stakeholders (focus on outcomes, certification readiness)",
}

const remediationIssueLimit = 10

// SystemPrompt returns the standing instruction for every generator call.
func SystemPrompt() string {
	return `You write narrative text for construction carbon compliance reports.

All compliance decisions have already been made by a deterministic rules engine.
You only describe those decisions. Do not re-evaluate findings, do not state
that anything passes or fails on your own judgement, and do not write in the
first person about evaluating or determining compliance.`
}

// UserPrompt renders the request for kind from b. audience only applies to
// KindStakeholderUpdate; unknown audiences fall back to "executive".
func UserPrompt(kind Kind, b *Brief, audience string) (string, error) {
	var sb strings.Builder
	switch kind {
	case KindExecutiveSummary:
		sb.WriteString("Write an executive summary for a compliance report.\n\n")
		writeStatus(&sb, b)
		writeCarbon(&sb, b)
		sb.WriteString("Top Issues:\n")
		writeTopIssues(&sb, b)
		sb.WriteString("\nWrite 3-4 paragraphs covering overall status and key metrics, the most significant findings, ")
		sb.WriteString("recommended priority actions and readiness for certification. Use only the facts above.\n")

	case KindRemediationPlan:
		if len(b.Failures) == 0 {
			return "", fmt.Errorf("narrative: %s: no failed findings to plan for", kind)
		}
		sb.WriteString("Organise the following findings into a remediation plan.\n\n")
		sb.WriteString(fmt.Sprintf("Project: %s\n\nIssues to Address:\n", b.ProjectName))
		writeSeverityCounts(&sb, b)
		sb.WriteString("\nDetailed Issues:\n")
		for i, is := range b.Failures {
			if i == remediationIssueLimit {
				break
			}
			sb.WriteString(fmt.Sprintf("\n- Rule: %s\n  Severity: %s\n  Issue: %s\n  Action: %s\n  Responsible: %s\n",
				is.RuleName, is.Severity, is.Description, is.Action, is.ResponsibleParty))
		}
		sb.WriteString("\nGive a priority timeline (immediate, short-term, long-term), responsible parties and their tasks, ")
		sb.WriteString("resources needed, estimated effort and dependencies between actions.\n")

	case KindCertificationReadiness:
		sb.WriteString("Write a certification readiness assessment.\n\n")
		writeStatus(&sb, b)
		sb.WriteString(fmt.Sprintf("Pass Rate: %.1f%%\n\n", b.PassRatePct))
		writeCarbon(&sb, b)
		sb.WriteString(fmt.Sprintf("Data Coverage:\n- EPDs: %d\n- Invoices: %d\n- BIM Models: %d\n\n",
			b.EPDCount, b.InvoiceCount, b.BIMModelCount))
		sb.WriteString("Write 3-4 paragraphs on status against NCC and GHG Protocol, documentation completeness, ")
		sb.WriteString("outstanding issues and the next steps before certification.\n")

	case KindStakeholderUpdate:
		guidance, ok := audiences[audience]
		if !ok {
			guidance = audiences["executive"]
		}
		sb.WriteString(fmt.Sprintf("Write a compliance update for %s.\n\n", guidance))
		writeStatus(&sb, b)
		sb.WriteString("Write 2-3 paragraphs on current status, findings relevant to this audience, ")
		sb.WriteString("implications and timeline. Adjust tone and depth for the audience.\n")

	default:
		return "", fmt.Errorf("narrative: unknown kind %q", kind)
	}
	return sb.String(), nil
}

func writeStatus(sb *strings.Builder, b *Brief) {
	status := "NON-COMPLIANT"
	if b.Summary.Compliant {
		status = "COMPLIANT"
	}
	sb.WriteString(fmt.Sprintf("Project: %s\nType: %s\nOverall Status: %s\n\n", b.ProjectName, b.ProjectType, status))
	sb.WriteString(fmt.Sprintf("Findings Summary:\n- Total Checks: %d\n- Passed: %d\n- Failed: %d\n",
		b.Summary.Total, b.Summary.Passed, b.Summary.Failed))
	sb.WriteString(fmt.Sprintf("- Critical Issues: %d\n- High Issues: %d\n- Medium Issues: %d\n\n",
		b.Summary.Critical, b.Summary.High, b.Summary.Medium))
}

func writeCarbon(sb *strings.Builder, b *Brief) {
	sb.WriteString(fmt.Sprintf("Carbon Metrics:\n- Total Embodied Carbon: %s kg CO2-e\n- Carbon Intensity: %s kg CO2-e/m²\n\n",
		b.TotalCarbonKg, b.CarbonIntensity))
}

func writeTopIssues(sb *strings.Builder, b *Brief) {
	if len(b.TopIssues) == 0 {
		sb.WriteString("No issues found\n")
		return
	}
	for i, is := range b.TopIssues {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s: %s\n", i+1, is.Severity, is.RuleName, is.Description))
	}
}

func writeSeverityCounts(sb *strings.Builder, b *Brief) {
	if b.Summary.Critical > 0 {
		sb.WriteString(fmt.Sprintf("- %d CRITICAL issues\n", b.Summary.Critical))
	}
	if b.Summary.High > 0 {
		sb.WriteString(fmt.Sprintf("- %d HIGH severity issues\n", b.Summary.High))
	}
	if b.Summary.Medium > 0 {
		sb.WriteString(fmt.Sprintf("- %d MEDIUM severity issues\n", b.Summary.Medium))
	}
}
