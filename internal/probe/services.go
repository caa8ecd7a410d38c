package probe

import (
	"strings"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

// Service classes the credential and stream probes know how to talk to.
const (
	serviceHTTP   = "http"
	serviceHTTPS  = "https"
	serviceRTSP   = "rtsp"
	serviceTelnet = "telnet"
)

var wellKnownServices = map[uint16]string{
	23:    serviceTelnet,
	80:    serviceHTTP,
	443:   serviceHTTPS,
	554:   serviceRTSP,
	8000:  serviceHTTP,
	8080:  serviceHTTP,
	8443:  serviceHTTPS,
	8554:  serviceRTSP,
	34567: serviceHTTP,
}

// serviceClass maps a port observation to a service class the probes can
// drive, preferring the scanner's service name over the port number.
func serviceClass(p *domain.PortObservation) string {
	name := strings.ToLower(p.Service)
	switch {
	case strings.Contains(name, "rtsp"):
		return serviceRTSP
	case strings.Contains(name, "telnet"):
		return serviceTelnet
	case strings.Contains(name, "https") || (strings.Contains(name, "http") && strings.Contains(strings.ToLower(p.Banner), "ssl")):
		return serviceHTTPS
	case strings.Contains(name, "http"):
		return serviceHTTP
	}
	return wellKnownServices[p.Port]
}

// endpoint is one service attachment point derived from discovery output.
type endpoint struct {
	service string
	port    uint16
}

// authCapableEndpoints extracts the auth-capable services (http, rtsp,
// telnet) from prior port observations, preserving discovery order.
func authCapableEndpoints(prior []domain.Observation) []endpoint {
	var out []endpoint
	seen := make(map[endpoint]struct{})
	for _, o := range prior {
		if o.Kind != domain.ObsPort {
			continue
		}
		class := serviceClass(o.Port)
		if class == "" {
			continue
		}
		ep := endpoint{service: class, port: o.Port.Port}
		if _, dup := seen[ep]; dup {
			continue
		}
		seen[ep] = struct{}{}
		out = append(out, ep)
	}
	return out
}

// portObservations filters the port-kind observations from a merged set.
func portObservations(prior []domain.Observation) []*domain.PortObservation {
	var out []*domain.PortObservation
	for _, o := range prior {
		if o.Kind == domain.ObsPort {
			out = append(out, o.Port)
		}
	}
	return out
}
