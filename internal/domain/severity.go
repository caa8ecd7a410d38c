package domain

import "fmt"

// Severity ranks the impact of a finding. The ordering is total:
// critical > high > medium > low > info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRanks = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeverityInfo:     0,
}

// Rank returns the numeric position of the severity in the total order.
// Unknown severities rank below info.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether s is one of the five known severities.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// ParseSeverity normalizes a severity string from catalog files.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q", raw)
	}
	return s, nil
}

// MaxSeverity returns the higher-ranked of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
