package probe

import (
	"context"
	"testing"

	"github.com/kroeungcyber/iotscan/internal/catalog"
	"github.com/kroeungcyber/iotscan/internal/domain"
)

func bannerObs(port uint16, banner string) domain.Observation {
	return domain.NewPortObservation(domain.ProbePortScan, domain.PortObservation{
		Port: port, Protocol: "tcp", Banner: banner,
	})
}

func TestFirmwareProbe(t *testing.T) {
	p := &FirmwareProber{Log: testLog(), Catalog: catalog.Default()}

	tests := []struct {
		name        string
		prior       []domain.Observation
		hint        string
		wantCount   int
		wantVendor  string
		wantVersion string
	}{
		{
			name:        "vendor and version from banner",
			prior:       []domain.Observation{bannerObs(80, "Hikvision-Webs V5.4.5 build170123")},
			wantCount:   1,
			wantVendor:  "hikvision",
			wantVersion: "5.4.5",
		},
		{
			name:        "version only",
			prior:       []domain.Observation{bannerObs(554, "rtspd 2.0")},
			wantCount:   1,
			wantVendor:  "",
			wantVersion: "2.0",
		},
		{
			name:       "vendor from device hint",
			prior:      []domain.Observation{bannerObs(80, "embedded httpd")},
			hint:       "dahua",
			wantCount:  0, // no version, no vendor match in banner itself
			wantVendor: "",
		},
		{
			name:      "no banner no observation",
			prior:     []domain.Observation{bannerObs(23, "")},
			wantCount: 0,
		},
		{
			name: "duplicate banners collapse",
			prior: []domain.Observation{
				bannerObs(80, "Dahua DVR 3.2.1"),
				bannerObs(8080, "Dahua DVR 3.2.1"),
			},
			wantCount:   1,
			wantVendor:  "dahua",
			wantVersion: "3.2.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := domain.Target{Address: "192.168.1.50", DeviceHint: tc.hint}
			obs, err := p.Probe(context.Background(), target, quickIntensity(), tc.prior)
			if err != nil {
				t.Fatalf("probe: %v", err)
			}
			if len(obs) != tc.wantCount {
				t.Fatalf("expected %d observations, got %d", tc.wantCount, len(obs))
			}
			if tc.wantCount == 0 {
				return
			}
			fw := obs[0].Firmware
			if fw.VendorGuess != tc.wantVendor {
				t.Errorf("expected vendor %q, got %q", tc.wantVendor, fw.VendorGuess)
			}
			if fw.VersionString != tc.wantVersion {
				t.Errorf("expected version %q, got %q", tc.wantVersion, fw.VersionString)
			}
		})
	}
}

func TestFirmwareProbe_NoNetworkSideEffect(t *testing.T) {
	// A cancelled context must not matter: the probe only re-analyzes
	// observations it was handed.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &FirmwareProber{Log: testLog(), Catalog: catalog.Default()}
	obs, err := p.Probe(ctx, domain.Target{Address: "192.168.1.50"}, quickIntensity(),
		[]domain.Observation{bannerObs(80, "Axis Network Camera 9.80.1")})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
}
