// Package probe contains the five probe module strategies. Each module is
// independently swappable and safe to run concurrently with every other
// module against the same target; modules share no mutable state.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

// Intensity carries the profile-dependent budgets a probe must honor.
type Intensity struct {
	// Timeout bounds the whole module run. Individual connection attempts
	// use smaller per-attempt deadlines so cancellation stays prompt.
	Timeout time.Duration

	// MaxObservations caps emitted observations; a runaway probe must not
	// grow memory without bound.
	MaxObservations int

	// AttemptDelay is the minimum delay between attempts against the same
	// service. The stealth profile stretches it; the credential probe
	// treats it as a lockout-avoidance floor.
	AttemptDelay time.Duration

	// Ports is the bounded port set a discovery probe may touch.
	Ports []uint16

	// Timing names the scan timing template: sneaky, polite, normal,
	// aggressive.
	Timing string
}

// Prober is the common probe module contract. prior carries observations
// from modules an analysis probe depends on; discovery probes ignore it.
// Observation order within one module is the order attempts were made.
type Prober interface {
	Kind() domain.ProbeKind
	Probe(ctx context.Context, target domain.Target, in Intensity, prior []domain.Observation) ([]domain.Observation, error)
}

// ToolError marks an external tool invocation failure (binary missing,
// crashed, unparseable output). It is a module-level partial failure,
// never a scan-level error.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// capObservations truncates to the module's observation budget.
func capObservations(obs []domain.Observation, limit int) []domain.Observation {
	if limit > 0 && len(obs) > limit {
		return obs[:limit]
	}
	return obs
}

// sleepAttempt waits the inter-attempt delay, honoring cancellation.
func sleepAttempt(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// attemptTimeout derives a per-attempt deadline that is always smaller
// than the module budget, so a probe mid-connection stays interruptible.
func attemptTimeout(in Intensity) time.Duration {
	t := in.Timeout / 4
	if t <= 0 || t > 10*time.Second {
		t = 10 * time.Second
	}
	return t
}
