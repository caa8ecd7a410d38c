// Package correlate turns raw probe observations into deduplicated,
// severity-ranked findings using the signature catalog.
package correlate

import (
	"github.com/sirupsen/logrus"

	"github.com/kroeungcyber/iotscan/internal/catalog"
	"github.com/kroeungcyber/iotscan/internal/domain"
)

// IssueDefaultCredentials is raised for every authentication success,
// independent of catalog content. A working default login is critical no
// matter what the catalog says about the device.
const IssueDefaultCredentials = "default-credentials"

// Correlator is stateless between calls; the catalog it holds is read-only
// for the process lifetime.
type Correlator struct {
	Log     *logrus.Entry
	Catalog *catalog.Catalog
}

func New(log *logrus.Entry, cat *catalog.Catalog) *Correlator {
	return &Correlator{Log: log, Catalog: cat}
}

// Correlate maps observations to findings. Each issue appears at most once;
// a repeated hit keeps only its first supporting observation, so output is
// stable under the input's original order. Findings come back sorted
// severity descending, then issue id ascending.
func (c *Correlator) Correlate(target domain.Target, observations []domain.Observation) []domain.Finding {
	byIssue := make(map[string]*domain.Finding)
	var order []string

	record := func(f domain.Finding) {
		if _, seen := byIssue[f.IssueID]; seen {
			return
		}
		byIssue[f.IssueID] = &f
		order = append(order, f.IssueID)
	}

	for _, o := range observations {
		// Credential observations are judged only on login success.
		// Evaluating catalog patterns against failed attempts would
		// flag devices for merely being probed.
		if o.Kind == domain.ObsCredential {
			if o.Credential != nil && o.Credential.Succeeded {
				record(c.credentialFinding(o))
			}
			continue
		}

		for _, sig := range c.Catalog.SignaturesFor(o.Kind) {
			if !sig.Match.Matches(o) {
				continue
			}
			record(domain.Finding{
				IssueID:     sig.ID,
				Severity:    sig.Severity,
				Description: sig.Description,
				Remediation: sig.Remediation,
				CVEs:        sig.CVEs,
				Evidence:    []domain.Observation{o},
			})
		}
	}

	findings := make([]domain.Finding, 0, len(order))
	for _, id := range order {
		findings = append(findings, *byIssue[id])
	}
	domain.SortFindings(findings)

	if len(findings) > 0 {
		c.Log.WithFields(logrus.Fields{
			"target":       target.Address,
			"findings":     len(findings),
			"top_severity": domain.TopSeverity(findings),
		}).Info("Correlation complete")
	}
	return findings
}

// credentialFinding builds the unconditional critical finding for a
// successful login, borrowing description and remediation text from the
// catalog entry when one exists.
func (c *Correlator) credentialFinding(o domain.Observation) domain.Finding {
	f := domain.Finding{
		IssueID:     IssueDefaultCredentials,
		Severity:    domain.SeverityCritical,
		Description: "Device accepts a factory-default credential pair",
		Remediation: "Change all default passwords and disable unused accounts",
		Evidence:    []domain.Observation{o},
	}
	if sig, ok := c.Catalog.Signature(IssueDefaultCredentials); ok {
		f.Description = sig.Description
		f.Remediation = sig.Remediation
		f.CVEs = sig.CVEs
	}
	// Severity stays critical even if the catalog entry disagrees.
	return f
}
