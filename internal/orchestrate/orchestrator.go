// Package orchestrate owns the scan lifecycle: authorization, fan-out to
// the profile's probe modules under time budgets, fan-in of observations,
// correlation, and persistence.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kroeungcyber/iotscan/internal/authz"
	"github.com/kroeungcyber/iotscan/internal/catalog"
	"github.com/kroeungcyber/iotscan/internal/correlate"
	"github.com/kroeungcyber/iotscan/internal/domain"
	"github.com/kroeungcyber/iotscan/internal/probe"
)

// cancelGrace bounds how long the fan-in waits for module goroutines after
// the global deadline fires. A module still running past this is marked
// cancelled and its late output discarded.
const cancelGrace = 2 * time.Second

// ResultAppender is the slice of the result store the orchestrator needs.
type ResultAppender interface {
	Append(ctx context.Context, result *domain.ScanResult) error
}

// Orchestrator coordinates one scan at a time per call; it holds no
// per-scan state and is safe for concurrent Scan calls.
type Orchestrator struct {
	Log        *logrus.Entry
	Gate       *authz.Gate
	Correlator *correlate.Correlator
	Store      ResultAppender
	Probers    map[domain.ProbeKind]probe.Prober

	specFor func(domain.Profile) (domain.ProfileSpec, bool)
}

// New wires the orchestrator with the standard probe set.
func New(log *logrus.Entry, gate *authz.Gate, cat *catalog.Catalog, store ResultAppender) *Orchestrator {
	return &Orchestrator{
		Log:        log,
		Gate:       gate,
		Correlator: correlate.New(log, cat),
		Store:      store,
		Probers: map[domain.ProbeKind]probe.Prober{
			domain.ProbePortScan:   &probe.PortScanner{Log: log},
			domain.ProbeCredential: &probe.CredentialProber{Log: log, Catalog: cat},
			domain.ProbeStream:     &probe.StreamProber{Log: log, Catalog: cat},
			domain.ProbeFirmware:   &probe.FirmwareProber{Log: log, Catalog: cat},
			domain.ProbeExposure:   &probe.ExposureProber{Log: log},
		},
		specFor: domain.Profile.Spec,
	}
}

// Scan runs one full assessment. Module failures degrade the result but
// never abort it; only validation, authorization, and persistence errors
// do.
func (o *Orchestrator) Scan(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error) {
	spec, ok := o.specFor(req.Profile)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidProfile, req.Profile)
	}
	if err := o.Gate.Authorize(ctx, req.Target); err != nil {
		return nil, err
	}

	startedAt := time.Now()
	scanID := domain.NewScanID(req.Target, startedAt)
	log := o.Log.WithFields(logrus.Fields{
		"scan_id": scanID,
		"target":  req.Target.Address,
		"profile": req.Profile,
	})
	log.Info("Scan authorized, starting probe modules")

	scanCtx, cancel := context.WithTimeout(ctx, spec.GlobalBudget)
	defer cancel()

	// Discovery modules run first and concurrently; analysis modules run
	// concurrently in a second wave fed by the discovery observations. A
	// slow module only delays its own wave's fan-in, never a sibling.
	discovery, analysis := splitStages(spec.Modules)

	observations, failures := o.runStage(scanCtx, log, req.Target, spec, discovery, nil)
	obs2, fail2 := o.runStage(scanCtx, log, req.Target, spec, analysis, observations)
	observations = append(observations, obs2...)
	failures = append(failures, fail2...)

	findings := o.Correlator.Correlate(req.Target, observations)

	result := &domain.ScanResult{
		ID:                  scanID,
		Target:              req.Target,
		Profile:             req.Profile,
		StartedAt:           startedAt,
		CompletedAt:         time.Now(),
		Findings:            findings,
		RawObservationCount: len(observations),
		Status:              scanStatus(len(spec.Modules), failures),
		ModuleFailures:      failures,
	}

	if err := o.Store.Append(ctx, result); err != nil {
		log.WithError(err).Error("Failed to persist scan result")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"status":       result.Status,
		"findings":     len(result.Findings),
		"observations": result.RawObservationCount,
		"duration":     result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond),
	}).Info("Scan complete")
	return result, nil
}

type moduleOutcome struct {
	kind domain.ProbeKind
	obs  []domain.Observation
	err  error
}

// runStage fans one wave of modules out and collects their observations in
// completion order. Modules that outlive the global deadline by more than
// the grace period are written off as cancelled.
func (o *Orchestrator) runStage(ctx context.Context, log *logrus.Entry, target domain.Target, spec domain.ProfileSpec, kinds []domain.ProbeKind, prior []domain.Observation) ([]domain.Observation, []domain.ModuleFailure) {
	if len(kinds) == 0 {
		return nil, nil
	}

	in := probe.Intensity{
		Timeout:         spec.ModuleTimeout,
		MaxObservations: spec.MaxObservations,
		AttemptDelay:    spec.AttemptDelay,
		Ports:           spec.Ports,
		Timing:          spec.Timing,
	}

	results := make(chan moduleOutcome, len(kinds))
	pending := make(map[domain.ProbeKind]bool, len(kinds))
	var failures []domain.ModuleFailure
	for _, kind := range kinds {
		p, ok := o.Probers[kind]
		if !ok {
			failures = append(failures, domain.ModuleFailure{
				Module: kind, Reason: domain.FailureTool, Detail: "no prober registered",
			})
			continue
		}
		pending[kind] = true
		go func(kind domain.ProbeKind, p probe.Prober) {
			moduleCtx, cancel := context.WithTimeout(ctx, spec.ModuleTimeout)
			defer cancel()
			obs, err := p.Probe(moduleCtx, target, in, prior)
			results <- moduleOutcome{kind: kind, obs: obs, err: err}
		}(kind, p)
	}

	var observations []domain.Observation
	var graceTimer <-chan time.Time
	for len(pending) > 0 {
		// Once the deadline fires, stop watching ctx and arm the grace
		// timer instead; a nil channel never selects.
		doneCh := ctx.Done()
		if graceTimer != nil {
			doneCh = nil
		}
		select {
		case out := <-results:
			delete(pending, out.kind)
			// Partial output survives a module failure; the marker
			// records why the module stopped early.
			observations = append(observations, out.obs...)
			if out.err != nil {
				reason := classifyFailure(ctx, out.err)
				failures = append(failures, domain.ModuleFailure{
					Module: out.kind, Reason: reason, Detail: out.err.Error(),
				})
				log.WithFields(logrus.Fields{"module": out.kind, "reason": reason}).Warn("Probe module failed")
			}
		case <-doneCh:
			graceTimer = time.After(cancelGrace)
		case <-graceTimer:
			for kind := range pending {
				failures = append(failures, domain.ModuleFailure{
					Module: kind, Reason: domain.FailureCancelled,
					Detail: "module did not return within the cancellation grace period",
				})
				log.WithField("module", kind).Warn("Probe module abandoned after deadline")
			}
			return observations, failures
		}
	}
	return observations, failures
}

// splitStages separates discovery modules, which need no prior input, from
// analysis modules that consume discovery output.
func splitStages(modules []domain.ProbeKind) (discovery, analysis []domain.ProbeKind) {
	for _, m := range modules {
		switch m {
		case domain.ProbePortScan, domain.ProbeExposure:
			discovery = append(discovery, m)
		default:
			analysis = append(analysis, m)
		}
	}
	return discovery, analysis
}

func classifyFailure(ctx context.Context, err error) domain.FailureReason {
	var toolErr *probe.ToolError
	switch {
	case errors.As(err, &toolErr):
		return domain.FailureTool
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return domain.FailureCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return domain.FailureTimeout
	default:
		return domain.FailureUnreachable
	}
}

// scanStatus derives the result status: complete when every module
// finished, degraded when none did, partial otherwise.
func scanStatus(modules int, failures []domain.ModuleFailure) domain.ScanStatus {
	switch {
	case len(failures) == 0:
		return domain.StatusComplete
	case len(failures) >= modules:
		return domain.StatusDegraded
	default:
		return domain.StatusPartial
	}
}
