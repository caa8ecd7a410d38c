package ops

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

type fakeScanner struct {
	req    domain.ScanRequest
	result *domain.ScanResult
	err    error
}

func (f *fakeScanner) Scan(_ context.Context, req domain.ScanRequest) (*domain.ScanResult, error) {
	f.req = req
	return f.result, f.err
}

func TestLookup_AllOperationsMapToValidProfiles(t *testing.T) {
	want := map[string]domain.Profile{
		"comprehensive_iot_scan":          domain.ProfileComprehensive,
		"camera_vulnerability_assessment": domain.ProfileCameraFocused,
		"rtsp_stream_analysis":            domain.ProfileCameraFocused,
		"default_credential_test":         domain.ProfileCredentialOnly,
		"firmware_analysis":               domain.ProfileFirmwareOnly,
		"network_exposure_check":          domain.ProfileExposureOnly,
		"smart_home_protocol_test":        domain.ProfileExposureOnly,
		"security_health_check":           domain.ProfileHealthCheck,
	}

	for name, profile := range want {
		op, ok := Lookup(name)
		if !ok {
			t.Errorf("operation %q not registered", name)
			continue
		}
		if op.Profile != profile {
			t.Errorf("%s maps to %q, want %q", name, op.Profile, profile)
		}
		if !op.Profile.Valid() {
			t.Errorf("%s maps to unknown profile %q", name, op.Profile)
		}
	}

	if got := len(Operations()); got != len(want) {
		t.Errorf("registry has %d operations, want %d", got, len(want))
	}
}

func TestOperations_StableOrder(t *testing.T) {
	first := Operations()
	second := Operations()
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Fatalf("listing order is not stable at index %d: %q vs %q", i, first[i].Name, second[i].Name)
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].Name >= first[i].Name {
			t.Fatalf("operations not sorted: %q before %q", first[i-1].Name, first[i].Name)
		}
	}
}

func TestDispatch_RunsMappedProfile(t *testing.T) {
	now := time.Now()
	scanner := &fakeScanner{result: &domain.ScanResult{
		ID:          "abc123",
		Target:      domain.Target{Address: "192.168.1.50"},
		Profile:     domain.ProfileCredentialOnly,
		StartedAt:   now,
		CompletedAt: now.Add(10 * time.Second),
		Status:      domain.StatusComplete,
	}}

	payload, err := Dispatch(context.Background(), scanner, "default_credential_test", domain.Target{Address: "192.168.1.50"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if scanner.req.Profile != domain.ProfileCredentialOnly {
		t.Errorf("dispatched profile = %q, want credential-only", scanner.req.Profile)
	}
	if scanner.req.RequestedAt.IsZero() {
		t.Error("request timestamp not set")
	}

	var decoded domain.ScanResult
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("result payload is not valid JSON: %v", err)
	}
	if decoded.ID != "abc123" || decoded.Status != domain.StatusComplete {
		t.Errorf("decoded result = %+v", decoded)
	}
}

func TestDispatch_UnknownOperation(t *testing.T) {
	scanner := &fakeScanner{}
	_, err := Dispatch(context.Background(), scanner, "port_stealer_9000", domain.Target{Address: "10.0.0.1"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %T, want ValidationError", err)
	}
	if scanner.req.Target.Address != "" {
		t.Error("scanner must not be invoked for unknown operations")
	}
}

func TestDispatch_ScanErrorPassesThrough(t *testing.T) {
	scanner := &fakeScanner{err: &domain.AuthzError{Target: "224.0.0.1", Reason: "multicast address"}}
	_, err := Dispatch(context.Background(), scanner, "security_health_check", domain.Target{Address: "224.0.0.1"})
	var aerr *domain.AuthzError
	if !errors.As(err, &aerr) {
		t.Fatalf("error = %v, want AuthzError", err)
	}
}
