package domain

import (
	"fmt"
	"time"
)

// Profile is a named scan configuration selecting which probe modules run
// and at what intensity.
type Profile string

const (
	ProfileQuick          Profile = "quick"
	ProfileComprehensive  Profile = "comprehensive"
	ProfileStealth        Profile = "stealth"
	ProfileCameraFocused  Profile = "camera-focused"
	ProfileCredentialOnly Profile = "credential-only"
	ProfileFirmwareOnly   Profile = "firmware-only"
	ProfileExposureOnly   Profile = "exposure-only"
	ProfileHealthCheck    Profile = "health-check"
)

// ProfileSpec fixes the probe set and the time/rate budgets of a profile.
type ProfileSpec struct {
	Modules         []ProbeKind
	GlobalBudget    time.Duration
	ModuleTimeout   time.Duration
	MaxObservations int
	AttemptDelay    time.Duration
	Ports           []uint16
	Timing          string // nmap timing template: sneaky, polite, normal, aggressive
}

// Well-known IoT and camera management ports.
var (
	quickPorts         = []uint16{80, 443, 554, 8000, 1883}
	comprehensivePorts = []uint16{21, 22, 23, 80, 443, 554, 1883, 5683, 8000, 8080, 8443, 8554, 8883, 9000, 34567, 37777, 37778}
	cameraPorts        = []uint16{80, 443, 554, 8000, 8080, 8554, 34567, 37777}
	authPorts          = []uint16{23, 80, 443, 554, 8000, 8080}
)

var profileSpecs = map[Profile]ProfileSpec{
	ProfileQuick: {
		Modules:         []ProbeKind{ProbePortScan, ProbeFirmware},
		GlobalBudget:    60 * time.Second,
		ModuleTimeout:   45 * time.Second,
		MaxObservations: 64,
		AttemptDelay:    250 * time.Millisecond,
		Ports:           quickPorts,
		Timing:          "aggressive",
	},
	ProfileComprehensive: {
		Modules:         []ProbeKind{ProbePortScan, ProbeExposure, ProbeCredential, ProbeStream, ProbeFirmware},
		GlobalBudget:    300 * time.Second,
		ModuleTimeout:   120 * time.Second,
		MaxObservations: 256,
		AttemptDelay:    500 * time.Millisecond,
		Ports:           comprehensivePorts,
		Timing:          "normal",
	},
	ProfileStealth: {
		Modules:         []ProbeKind{ProbePortScan, ProbeStream, ProbeFirmware},
		GlobalBudget:    300 * time.Second,
		ModuleTimeout:   120 * time.Second,
		MaxObservations: 64,
		AttemptDelay:    3 * time.Second,
		Ports:           quickPorts,
		Timing:          "sneaky",
	},
	ProfileCameraFocused: {
		Modules:         []ProbeKind{ProbePortScan, ProbeCredential, ProbeStream, ProbeFirmware},
		GlobalBudget:    180 * time.Second,
		ModuleTimeout:   90 * time.Second,
		MaxObservations: 128,
		AttemptDelay:    500 * time.Millisecond,
		Ports:           cameraPorts,
		Timing:          "normal",
	},
	ProfileCredentialOnly: {
		Modules:         []ProbeKind{ProbePortScan, ProbeCredential},
		GlobalBudget:    120 * time.Second,
		ModuleTimeout:   60 * time.Second,
		MaxObservations: 64,
		AttemptDelay:    1 * time.Second,
		Ports:           authPorts,
		Timing:          "polite",
	},
	ProfileFirmwareOnly: {
		Modules:         []ProbeKind{ProbePortScan, ProbeFirmware},
		GlobalBudget:    90 * time.Second,
		ModuleTimeout:   60 * time.Second,
		MaxObservations: 64,
		AttemptDelay:    250 * time.Millisecond,
		Ports:           cameraPorts,
		Timing:          "normal",
	},
	ProfileExposureOnly: {
		Modules:         []ProbeKind{ProbeExposure},
		GlobalBudget:    60 * time.Second,
		ModuleTimeout:   45 * time.Second,
		MaxObservations: 32,
		AttemptDelay:    500 * time.Millisecond,
		Timing:          "normal",
	},
	ProfileHealthCheck: {
		Modules:         []ProbeKind{ProbePortScan, ProbeExposure, ProbeFirmware},
		GlobalBudget:    120 * time.Second,
		ModuleTimeout:   60 * time.Second,
		MaxObservations: 128,
		AttemptDelay:    500 * time.Millisecond,
		Ports:           quickPorts,
		Timing:          "normal",
	},
}

// Spec returns the probe set and budgets for the profile.
func (p Profile) Spec() (ProfileSpec, bool) {
	spec, ok := profileSpecs[p]
	return spec, ok
}

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool {
	_, ok := profileSpecs[p]
	return ok
}

// ParseProfile validates a profile name from the operation surface.
func ParseProfile(raw string) (Profile, error) {
	p := Profile(raw)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidProfile, raw)
	}
	return p, nil
}

// Profiles lists the known profile names in stable order.
func Profiles() []Profile {
	return []Profile{
		ProfileQuick,
		ProfileComprehensive,
		ProfileStealth,
		ProfileCameraFocused,
		ProfileCredentialOnly,
		ProfileFirmwareOnly,
		ProfileExposureOnly,
		ProfileHealthCheck,
	}
}
