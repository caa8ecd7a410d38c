package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ScanStatus distinguishes a clean assessment from one that could not
// observe the target.
type ScanStatus string

const (
	StatusComplete ScanStatus = "complete" // every selected module finished
	StatusPartial  ScanStatus = "partial"  // some modules failed, others observed
	StatusDegraded ScanStatus = "degraded" // every module failed or timed out
)

// FailureReason classifies a module-level partial failure.
type FailureReason string

const (
	FailureTimeout     FailureReason = "timeout"
	FailureUnreachable FailureReason = "unreachable"
	FailureTool        FailureReason = "tool"
	FailureCancelled   FailureReason = "cancelled"
)

// ModuleFailure is the partial-failure marker attached to a scan run when a
// probe module could not complete. It never aborts the scan.
type ModuleFailure struct {
	Module ProbeKind     `json:"module"`
	Reason FailureReason `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}

// ScanRequest is one scan invocation. It is not persisted standalone, only
// through its resulting ScanResult.
type ScanRequest struct {
	Target      Target    `json:"target"`
	Profile     Profile   `json:"profile"`
	RequestedAt time.Time `json:"requested_at"`
}

// ScanResult is the persisted unit of one scan run. It is created once per
// scan and immutable after completion; later scans of the same target
// supersede it, never mutate it.
type ScanResult struct {
	ID                  string          `json:"id"`
	Target              Target          `json:"target"`
	Profile             Profile         `json:"profile"`
	StartedAt           time.Time       `json:"started_at"`
	CompletedAt         time.Time       `json:"completed_at"`
	Findings            []Finding       `json:"findings"`
	RawObservationCount int             `json:"raw_observation_count"`
	Status              ScanStatus      `json:"status"`
	ModuleFailures      []ModuleFailure `json:"module_failures,omitempty"`
}

// TopSeverity returns the aggregate severity of the result's findings.
func (r *ScanResult) TopSeverity() Severity {
	return TopSeverity(r.Findings)
}

// NewScanID derives a stable identifier for a scan run from its target and
// start instant.
func NewScanID(target Target, startedAt time.Time) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d", target.Address, startedAt.UnixNano()))
	return hex.EncodeToString(sum[:8])
}
