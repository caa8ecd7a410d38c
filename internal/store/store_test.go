package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResult(target string, completedAt time.Time) *domain.ScanResult {
	tgt := domain.Target{Address: target}
	started := completedAt.Add(-30 * time.Second)
	return &domain.ScanResult{
		ID:        domain.NewScanID(tgt, started),
		Target:    tgt,
		Profile:   domain.ProfileCredentialOnly,
		StartedAt: started,
		Findings: []domain.Finding{{
			IssueID:     "default-credentials",
			Severity:    domain.SeverityCritical,
			Description: "Device accepts a well-known default username/password pair.",
			Evidence: []domain.Observation{
				domain.NewCredentialObservation(domain.ProbeCredential, domain.CredentialObservation{
					Service: "rtsp", Username: "admin", Password: "admin", Succeeded: true,
				}),
			},
		}},
		RawObservationCount: 3,
		Status:              domain.StatusComplete,
		CompletedAt:         completedAt,
	}
}

func TestStore_AppendAndGet(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	want := sampleResult("192.168.1.50", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.Append(ctx, want))

	got, err := s.Get(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Target, got.Target)
	assert.Equal(t, want.Profile, got.Profile)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.RawObservationCount, got.RawObservationCount)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, "default-credentials", got.Findings[0].IssueID)
	assert.Equal(t, domain.SeverityCritical, got.Findings[0].Severity)
	require.Len(t, got.Findings[0].Evidence, 1)
	assert.True(t, got.Findings[0].Evidence[0].Credential.Succeeded)
}

func TestStore_HistoryNewestFirst(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	older := sampleResult("10.0.0.9", base.Add(-time.Hour))
	newer := sampleResult("10.0.0.9", base)
	other := sampleResult("10.0.0.10", base)
	require.NoError(t, s.Append(ctx, older))
	require.NoError(t, s.Append(ctx, newer))
	require.NoError(t, s.Append(ctx, other))

	history, err := s.History(ctx, "10.0.0.9", 0)
	require.NoError(t, err)
	require.Len(t, history, 2, "earlier runs are superseded, never replaced")
	assert.Equal(t, newer.ID, history[0].ID)
	assert.Equal(t, older.ID, history[1].ID)

	limited, err := s.History(ctx, "10.0.0.9", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.ID, limited[0].ID)
}

func TestStore_Since(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	old := sampleResult("10.0.0.1", base.Add(-2*time.Hour))
	recent := sampleResult("10.0.0.2", base)
	require.NoError(t, s.Append(ctx, old))
	require.NoError(t, s.Append(ctx, recent))

	results, err := s.Since(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, recent.ID, results[0].ID)
}

func TestStore_DuplicateScanIDIsPersistError(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	r := sampleResult("10.0.0.3", time.Now().UTC())
	require.NoError(t, s.Append(ctx, r))

	err := s.Append(ctx, r)
	require.Error(t, err)
	var perr *domain.PersistError
	assert.True(t, errors.As(err, &perr))
}

func TestStore_DegradedRunPersistsWithFailures(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	r := sampleResult("10.0.0.4", time.Now().UTC())
	r.Findings = nil
	r.Status = domain.StatusDegraded
	r.ModuleFailures = []domain.ModuleFailure{
		{Module: domain.ProbePortScan, Reason: domain.FailureTimeout},
		{Module: domain.ProbeCredential, Reason: domain.FailureUnreachable, Detail: "connection refused"},
	}
	require.NoError(t, s.Append(ctx, r))

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Findings)
	assert.Equal(t, domain.StatusDegraded, got.Status)
	require.Len(t, got.ModuleFailures, 2)
	assert.Equal(t, domain.FailureUnreachable, got.ModuleFailures[1].Reason)
}
