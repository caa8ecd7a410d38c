// Package authz implements the pre-flight authorization gate consulted
// before any network probe is issued. It is policy, not cryptography:
// target validation, a denylist of ranges that must never be scanned, and
// a per-target scan rate ceiling.
package authz

import (
	"context"
	"net"
	"regexp"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

// Config controls gate behavior.
type Config struct {
	// AllowLocal permits loopback and link-local targets. Off by default;
	// lab setups scanning mock devices on 127.0.0.1 turn it on explicitly.
	AllowLocal bool `yaml:"allow_local,omitempty"`

	// ResolveHostnames verifies non-literal targets through DNS and applies
	// the denylist to every resolved address.
	ResolveHostnames bool `yaml:"resolve_hostnames,omitempty"`

	// MaxScansPerWindow bounds scans per target within Window.
	MaxScansPerWindow int `yaml:"max_scans_per_window,omitempty"`

	// Window is the sliding rate-limit window.
	Window time.Duration `yaml:"window,omitempty"`
}

// DefaultConfig returns the gate defaults: 10 scans per target per 5
// minutes, local targets denied, hostnames resolved.
func DefaultConfig() Config {
	return Config{
		AllowLocal:        false,
		ResolveHostnames:  true,
		MaxScansPerWindow: 10,
		Window:            5 * time.Minute,
	}
}

// Gate is consulted once per scan. Its rate counter is the only state
// shared across concurrent scans; access is mutex-guarded and reset is
// tied to process lifetime.
type Gate struct {
	cfg      Config
	resolver *net.Resolver
	now      func() time.Time

	mu      sync.Mutex
	history map[string][]time.Time
}

// New creates a gate. Zero-valued config fields fall back to defaults.
func New(cfg Config) *Gate {
	def := DefaultConfig()
	if cfg.MaxScansPerWindow <= 0 {
		cfg.MaxScansPerWindow = def.MaxScansPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	return &Gate{
		cfg:      cfg,
		resolver: net.DefaultResolver,
		now:      time.Now,
		history:  make(map[string][]time.Time),
	}
}

var hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,62})(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,62}))*$`)

// Authorize validates the target, applies the denylist, and charges the
// per-target rate counter. A nil return permits the scan; a
// *domain.AuthzError or *domain.ValidationError denies it with no network
// traffic emitted.
func (g *Gate) Authorize(ctx context.Context, target domain.Target) error {
	addr := target.Address
	if addr == "" {
		return &domain.ValidationError{Field: "target", Msg: "no target specified"}
	}

	if ip := net.ParseIP(addr); ip != nil {
		if reason := g.denyReason(ip); reason != "" {
			return &domain.AuthzError{Target: addr, Reason: reason}
		}
	} else {
		if !hostnameRe.MatchString(addr) {
			return &domain.ValidationError{Field: "target", Msg: "not an IP literal or hostname"}
		}
		if g.cfg.ResolveHostnames {
			addrs, err := g.resolver.LookupHost(ctx, addr)
			if err != nil {
				return &domain.ValidationError{Field: "target", Msg: "hostname does not resolve"}
			}
			for _, resolved := range addrs {
				if ip := net.ParseIP(resolved); ip != nil {
					if reason := g.denyReason(ip); reason != "" {
						return &domain.AuthzError{Target: addr, Reason: reason + " (resolved " + resolved + ")"}
					}
				}
			}
		}
	}

	if !g.charge(target.Key()) {
		log.WithFields(log.Fields{
			"target":  addr,
			"ceiling": g.cfg.MaxScansPerWindow,
			"window":  g.cfg.Window,
		}).Warn("Scan rate ceiling reached for target")
		return &domain.AuthzError{Target: addr, Reason: "rate-limited"}
	}
	return nil
}

func (g *Gate) denyReason(ip net.IP) string {
	switch {
	case ip.IsUnspecified():
		return "unspecified address"
	case ip.Equal(net.IPv4bcast):
		return "broadcast address"
	case ip.IsMulticast():
		return "multicast address"
	case (ip.IsLoopback() || ip.IsLinkLocalUnicast()) && !g.cfg.AllowLocal:
		return "local address (set allow_local to override)"
	}
	return ""
}

// charge prunes expired entries and records the attempt when under the
// ceiling. Increment and check are atomic per target key.
func (g *Gate) charge(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.cfg.Window)

	kept := g.history[key][:0]
	for _, t := range g.history[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= g.cfg.MaxScansPerWindow {
		g.history[key] = kept
		return false
	}
	g.history[key] = append(kept, now)
	return true
}

// Reset clears the rate counter. Intended for process teardown and tests.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = make(map[string][]time.Time)
}
