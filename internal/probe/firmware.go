package probe

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kroeungcyber/iotscan/internal/catalog"
	"github.com/kroeungcyber/iotscan/internal/domain"
)

// FirmwareProber extracts vendor and firmware version hints from banners
// already captured by the port probe. It performs no network calls of its
// own; it is pure re-analysis of existing observations.
type FirmwareProber struct {
	Log     *logrus.Entry
	Catalog *catalog.Catalog
}

func (FirmwareProber) Kind() domain.ProbeKind { return domain.ProbeFirmware }

var versionRe = regexp.MustCompile(`[vV]?(\d+\.\d+(?:\.\d+)*(?:[.-]?(?:build)?\d+)?)`)

func (p *FirmwareProber) Probe(_ context.Context, target domain.Target, in Intensity, prior []domain.Observation) ([]domain.Observation, error) {
	var obs []domain.Observation
	seen := make(map[string]struct{})

	for _, port := range portObservations(prior) {
		banner := strings.TrimSpace(port.Banner)
		if banner == "" {
			continue
		}

		vendor := p.Catalog.VendorFor(banner)

		version := ""
		if m := versionRe.FindStringSubmatch(banner); m != nil {
			version = m[1]
		}

		// The declared device hint only backs up a version hit; it never
		// fabricates a firmware observation on its own.
		if vendor == "" && version != "" && target.DeviceHint != "" {
			if _, known := p.Catalog.Vendor(target.DeviceHint); known {
				vendor = strings.ToLower(target.DeviceHint)
			}
		}

		if vendor == "" && version == "" {
			continue
		}
		key := vendor + "|" + version
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		obs = append(obs, domain.NewFirmwareObservation(domain.ProbeFirmware, domain.FirmwareObservation{
			VendorGuess:   vendor,
			VersionString: version,
			SourcePort:    port.Port,
		}))
	}

	p.Log.WithFields(logrus.Fields{
		"target":   target.Address,
		"banners":  len(portObservations(prior)),
		"firmware": len(obs),
	}).Info("Firmware banner analysis complete")

	return capObservations(obs, in.MaxObservations), nil
}
