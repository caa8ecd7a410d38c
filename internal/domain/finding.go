package domain

import "sort"

// Finding is a correlated, severity-scored security issue. Findings are
// deduplicated by issue id within one scan; Evidence holds the first
// observation that triggered the issue.
type Finding struct {
	IssueID     string        `json:"issue_id"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
	Remediation string        `json:"remediation,omitempty"`
	CVEs        []string      `json:"cves,omitempty"`
	Evidence    []Observation `json:"evidence"`
}

// SortFindings orders findings severity-descending, then issue id ascending
// for stable ties. This ordering is what makes scan output deterministic.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri, rj := findings[i].Severity.Rank(), findings[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return findings[i].IssueID < findings[j].IssueID
	})
}

// TopSeverity returns the highest severity among the findings, or info when
// there are none.
func TopSeverity(findings []Finding) Severity {
	top := SeverityInfo
	for _, f := range findings {
		top = MaxSeverity(top, f.Severity)
	}
	return top
}
