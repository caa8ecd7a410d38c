package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Signature is one catalog rule mapping an observation pattern to a known
// issue. Signatures are read-only at scan time.
type Signature struct {
	ID          string    `yaml:"id" json:"id"`
	Match       MatchRule `yaml:"match" json:"match"`
	Severity    Severity  `yaml:"severity" json:"severity"`
	Description string    `yaml:"description" json:"description"`
	Remediation string    `yaml:"remediation" json:"remediation"`
	CVEs        []string  `yaml:"cves,omitempty" json:"cves,omitempty"`
}

// MatchRule selects the observations a signature applies to. Kind is
// mandatory; the remaining fields narrow the match and are ignored when
// zero-valued.
type MatchRule struct {
	Kind         ObservationKind `yaml:"kind" json:"kind"`
	Ports        []uint16        `yaml:"ports,omitempty" json:"ports,omitempty"`
	Protocol     string          `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	Pattern      string          `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	AuthRequired *bool           `yaml:"auth_required,omitempty" json:"auth_required,omitempty"`
	Exposed      *bool           `yaml:"exposed,omitempty" json:"exposed,omitempty"`

	re *regexp.Regexp
}

// Compile validates the rule and prepares its pattern for matching. It must
// be called once at catalog load; Matches panics only on nil receivers,
// never on uncompiled patterns (an uncompiled pattern matches nothing).
func (m *MatchRule) Compile() error {
	switch m.Kind {
	case ObsPort, ObsCredential, ObsStream, ObsFirmware, ObsProtocol:
	default:
		return fmt.Errorf("unknown observation kind %q", m.Kind)
	}
	if m.Pattern != "" {
		re, err := regexp.Compile(m.Pattern)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", m.Pattern, err)
		}
		m.re = re
	}
	return nil
}

// Matches reports whether the rule applies to the observation.
func (m *MatchRule) Matches(o Observation) bool {
	if o.Kind != m.Kind {
		return false
	}
	switch o.Kind {
	case ObsPort:
		return m.matchPort(o.Port)
	case ObsCredential:
		return m.matchText(o.Credential.Service + " " + o.Credential.Endpoint)
	case ObsStream:
		return m.matchStream(o.Stream)
	case ObsFirmware:
		return m.matchText(o.Firmware.VendorGuess + " " + o.Firmware.VersionString)
	case ObsProtocol:
		return m.matchProtocol(o.Protocol)
	}
	return false
}

func (m *MatchRule) matchPort(p *PortObservation) bool {
	if len(m.Ports) > 0 && !containsPort(m.Ports, p.Port) {
		return false
	}
	if m.Protocol != "" && !strings.EqualFold(m.Protocol, p.Protocol) {
		return false
	}
	return m.matchText(p.Service + " " + p.Banner)
}

func (m *MatchRule) matchStream(s *StreamObservation) bool {
	if m.AuthRequired != nil && s.AuthRequired != *m.AuthRequired {
		return false
	}
	return m.matchText(s.URI + " " + s.Codec)
}

func (m *MatchRule) matchProtocol(p *ProtocolObservation) bool {
	if m.Protocol != "" && !strings.EqualFold(m.Protocol, p.ProtocolName) {
		return false
	}
	if m.Exposed != nil && p.Exposed != *m.Exposed {
		return false
	}
	if len(m.Ports) > 0 && !containsPort(m.Ports, p.Port) {
		return false
	}
	return m.matchText(p.ProtocolName + " " + p.Detail)
}

func (m *MatchRule) matchText(text string) bool {
	if m.Pattern == "" {
		return true
	}
	if m.re == nil {
		return false
	}
	return m.re.MatchString(text)
}

func containsPort(ports []uint16, p uint16) bool {
	for _, candidate := range ports {
		if candidate == p {
			return true
		}
	}
	return false
}
