// Package ops is the named operation surface: a fixed registry mapping
// operation names to scan profiles. The transport that carries operation
// calls lives outside this module; ops only resolves names and serializes
// results.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

// Scanner is the slice of the orchestrator the operation surface needs.
type Scanner interface {
	Scan(ctx context.Context, req domain.ScanRequest) (*domain.ScanResult, error)
}

// Operation is one named entry point.
type Operation struct {
	Name        string         `json:"name"`
	Profile     domain.Profile `json:"profile"`
	Description string         `json:"description"`
}

var registry = map[string]Operation{
	"comprehensive_iot_scan": {
		Name:        "comprehensive_iot_scan",
		Profile:     domain.ProfileComprehensive,
		Description: "Full assessment: every probe module at normal intensity.",
	},
	"camera_vulnerability_assessment": {
		Name:        "camera_vulnerability_assessment",
		Profile:     domain.ProfileCameraFocused,
		Description: "Camera-oriented scan of management, stream, and firmware surfaces.",
	},
	"rtsp_stream_analysis": {
		Name:        "rtsp_stream_analysis",
		Profile:     domain.ProfileCameraFocused,
		Description: "Stream reachability and authentication checks on camera ports.",
	},
	"default_credential_test": {
		Name:        "default_credential_test",
		Profile:     domain.ProfileCredentialOnly,
		Description: "Default credential attempts against discovered auth endpoints.",
	},
	"firmware_analysis": {
		Name:        "firmware_analysis",
		Profile:     domain.ProfileFirmwareOnly,
		Description: "Vendor and firmware version identification from service banners.",
	},
	"network_exposure_check": {
		Name:        "network_exposure_check",
		Profile:     domain.ProfileExposureOnly,
		Description: "UPnP, mDNS, MQTT, and CoAPS endpoint exposure checks.",
	},
	"smart_home_protocol_test": {
		Name:        "smart_home_protocol_test",
		Profile:     domain.ProfileExposureOnly,
		Description: "Smart-home protocol reachability and anonymous-access checks.",
	},
	"security_health_check": {
		Name:        "security_health_check",
		Profile:     domain.ProfileHealthCheck,
		Description: "Lightweight recurring check: ports, exposure, firmware drift.",
	},
}

// Lookup resolves an operation name.
func Lookup(name string) (Operation, bool) {
	op, ok := registry[name]
	return op, ok
}

// Operations lists the registry in stable name order.
func Operations() []Operation {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := make([]Operation, 0, len(names))
	for _, name := range names {
		ops = append(ops, registry[name])
	}
	return ops
}

// Dispatch resolves the named operation, runs its scan, and returns the
// JSON-serialized result. Unknown names fail validation before any network
// activity.
func Dispatch(ctx context.Context, scanner Scanner, name string, target domain.Target) ([]byte, error) {
	op, ok := registry[name]
	if !ok {
		return nil, &domain.ValidationError{Field: "operation", Msg: fmt.Sprintf("unknown operation %q", name)}
	}

	result, err := scanner.Scan(ctx, domain.ScanRequest{
		Target:      target,
		Profile:     op.Profile,
		RequestedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return Encode(result)
}

// Encode serializes a scan result the way the operation surface returns it.
func Encode(result *domain.ScanResult) ([]byte, error) {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode scan result: %w", err)
	}
	return payload, nil
}
