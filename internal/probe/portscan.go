package probe

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/sirupsen/logrus"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

// PortScanner enumerates a bounded, profile-dependent port set and records
// open ports with any banner returned on connect. It shells out to nmap
// through the library and never attempts more than one connection per port
// per scan.
type PortScanner struct {
	Log *logrus.Entry
}

func (PortScanner) Kind() domain.ProbeKind { return domain.ProbePortScan }

func (p *PortScanner) Probe(ctx context.Context, target domain.Target, in Intensity, _ []domain.Observation) ([]domain.Observation, error) {
	ports := in.Ports
	if len(ports) == 0 {
		return nil, &ToolError{Tool: "nmap", Err: fmt.Errorf("no port set configured")}
	}

	opts := []nmap.Option{
		nmap.WithTargets(target.Address),
		nmap.WithPorts(joinPorts(ports)),
		nmap.WithServiceInfo(),
		nmap.WithOpenOnly(),
		nmap.WithSkipHostDiscovery(),
		nmap.WithDisabledDNSResolution(),
		nmap.WithTimingTemplate(timingTemplate(in.Timing)),
	}

	log := p.Log.WithFields(logrus.Fields{
		"target": target.Address,
		"ports":  len(ports),
		"timing": in.Timing,
	})
	log.Info("Starting port probe")

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, &ToolError{Tool: "nmap", Err: err}
	}

	run, warnings, err := scanner.Run()
	if err != nil {
		// The run may carry partial output even on deadline expiry.
		if run != nil && ctx.Err() != nil {
			return capObservations(observationsFromRun(run), in.MaxObservations), ctx.Err()
		}
		return nil, &ToolError{Tool: "nmap", Err: err}
	}
	if warnings != nil && len(*warnings) > 0 {
		log.WithField("warnings", *warnings).Debug("Port probe produced warnings")
	}

	obs := observationsFromRun(run)
	log.WithField("open_ports", len(obs)).Info("Port probe complete")
	return capObservations(obs, in.MaxObservations), nil
}

// ParseXML converts raw nmap XML output into port observations. It is a
// pure function so tool output parsing is testable without invoking any
// subprocess.
func ParseXML(content []byte) ([]domain.Observation, error) {
	var run nmap.Run
	if err := nmap.Parse(content, &run); err != nil {
		return nil, &ToolError{Tool: "nmap", Err: fmt.Errorf("parse xml: %w", err)}
	}
	return observationsFromRun(&run), nil
}

// observationsFromRun flattens an nmap run into observations, open ports
// only, ascending port order per host.
func observationsFromRun(run *nmap.Run) []domain.Observation {
	var obs []domain.Observation
	for _, host := range run.Hosts {
		ports := append([]nmap.Port(nil), host.Ports...)
		sort.Slice(ports, func(i, j int) bool { return ports[i].ID < ports[j].ID })

		for _, port := range ports {
			if !strings.HasPrefix(strings.ToLower(port.State.State), "open") {
				continue
			}
			obs = append(obs, domain.NewPortObservation(domain.ProbePortScan, domain.PortObservation{
				Port:     port.ID,
				Protocol: port.Protocol,
				Service:  port.Service.Name,
				Banner:   bannerText(port.Service),
			}))
		}
	}
	return obs
}

func bannerText(svc nmap.Service) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{svc.Product, svc.Version, svc.ExtraInfo} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func joinPorts(ports []uint16) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(int(p))
	}
	return strings.Join(parts, ",")
}

func timingTemplate(name string) nmap.Timing {
	switch strings.ToLower(name) {
	case "sneaky":
		return nmap.TimingSneaky
	case "polite":
		return nmap.TimingPolite
	case "aggressive":
		return nmap.TimingAggressive
	default:
		return nmap.TimingNormal
	}
}
