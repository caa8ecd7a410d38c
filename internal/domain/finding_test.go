package domain

import "testing"

func TestSeverityOrderingIsTotal(t *testing.T) {
	ordered := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
	for i := 0; i < len(ordered)-1; i++ {
		if ordered[i].Rank() <= ordered[i+1].Rank() {
			t.Errorf("%s should rank above %s", ordered[i], ordered[i+1])
		}
	}
	if Severity("bogus").Rank() >= SeverityInfo.Rank() {
		t.Error("unknown severity should rank below info")
	}
}

func TestSortFindings(t *testing.T) {
	findings := []Finding{
		{IssueID: "b-medium", Severity: SeverityMedium},
		{IssueID: "a-critical", Severity: SeverityCritical},
		{IssueID: "a-medium", Severity: SeverityMedium},
		{IssueID: "z-info", Severity: SeverityInfo},
		{IssueID: "b-critical", Severity: SeverityCritical},
	}

	SortFindings(findings)

	want := []string{"a-critical", "b-critical", "a-medium", "b-medium", "z-info"}
	for i, id := range want {
		if findings[i].IssueID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, findings[i].IssueID)
		}
	}
}

func TestTopSeverity(t *testing.T) {
	if got := TopSeverity(nil); got != SeverityInfo {
		t.Errorf("empty findings should aggregate to info, got %s", got)
	}
	findings := []Finding{
		{IssueID: "x", Severity: SeverityLow},
		{IssueID: "y", Severity: SeverityHigh},
	}
	if got := TopSeverity(findings); got != SeverityHigh {
		t.Errorf("expected high, got %s", got)
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "quick is known", raw: "quick"},
		{name: "credential-only is known", raw: "credential-only"},
		{name: "unknown profile rejected", raw: "warp-speed", wantErr: true},
		{name: "empty profile rejected", raw: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProfile(tc.raw)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %q", tc.raw)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEveryProfileHasSpec(t *testing.T) {
	for _, p := range Profiles() {
		spec, ok := p.Spec()
		if !ok {
			t.Fatalf("profile %s has no spec", p)
		}
		if len(spec.Modules) == 0 {
			t.Errorf("profile %s selects no modules", p)
		}
		if spec.GlobalBudget <= 0 || spec.ModuleTimeout <= 0 {
			t.Errorf("profile %s has unset budgets", p)
		}
		if spec.ModuleTimeout > spec.GlobalBudget {
			t.Errorf("profile %s module timeout exceeds global budget", p)
		}
	}
}
