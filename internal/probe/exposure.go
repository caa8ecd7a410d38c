package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/mdns"
	"github.com/pion/dtls/v3"
	"github.com/sirupsen/logrus"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

const (
	ssdpPort  = 1900
	mqttPort  = 1883
	coapsPort = 5684
)

// ExposureProber checks smart-home protocol endpoint exposure: UPnP
// discovery response, mDNS advertisement, anonymous MQTT access, and CoAPS
// reachability. Each protocol gets a single lookup attempt bounded by the
// module deadline.
type ExposureProber struct {
	Log *logrus.Entry

	// MDNSLookup is swappable for tests; defaults to a hashicorp/mdns query.
	MDNSLookup func(ctx context.Context, timeout time.Duration) ([]*mdns.ServiceEntry, error)

	ssdpPortOverride int
	mqttPortOverride int
}

func (ExposureProber) Kind() domain.ProbeKind { return domain.ProbeExposure }

func (p *ExposureProber) Probe(ctx context.Context, target domain.Target, in Intensity, _ []domain.Observation) ([]domain.Observation, error) {
	perAttempt := attemptTimeout(in)
	log := p.Log.WithField("target", target.Address)
	log.Info("Starting protocol exposure probe")

	checks := []struct {
		name string
		run  func(context.Context, string, time.Duration) domain.ProtocolObservation
	}{
		{"upnp", p.checkSSDP},
		{"mdns", p.checkMDNS},
		{"mqtt", p.checkMQTT},
		{"coaps", p.checkCoAPS},
	}

	var obs []domain.Observation
	for i, check := range checks {
		if i > 0 {
			if err := sleepAttempt(ctx, in.AttemptDelay); err != nil {
				return capObservations(obs, in.MaxObservations), err
			}
		}
		if ctx.Err() != nil {
			return capObservations(obs, in.MaxObservations), ctx.Err()
		}

		o := check.run(ctx, target.Address, perAttempt)
		log.WithFields(logrus.Fields{"protocol": o.ProtocolName, "exposed": o.Exposed}).Debug("Exposure check done")
		obs = append(obs, domain.NewProtocolObservation(domain.ProbeExposure, o))
	}

	log.WithField("observations", len(obs)).Info("Protocol exposure probe complete")
	return capObservations(obs, in.MaxObservations), nil
}

// checkSSDP sends a single unicast M-SEARCH and waits one deadline for a
// discovery response.
func (p *ExposureProber) checkSSDP(ctx context.Context, host string, timeout time.Duration) domain.ProtocolObservation {
	obs := domain.ProtocolObservation{ProtocolName: "upnp", Port: ssdpPort}

	port := ssdpPort
	if p.ssdpPortOverride != 0 {
		port = p.ssdpPortOverride
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return obs
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	search := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: upnp:rootdevice\r\n\r\n"
	if _, err := conn.Write([]byte(search)); err != nil {
		return obs
	}

	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		return obs
	}
	if parsed, ok := ParseSSDPResponse(buf[:n]); ok {
		return parsed
	}
	return obs
}

// ParseSSDPResponse interprets a raw SSDP datagram. Pure function, bytes
// in, observation out, so discovery parsing is testable without sockets.
func ParseSSDPResponse(data []byte) (domain.ProtocolObservation, bool) {
	obs := domain.ProtocolObservation{ProtocolName: "upnp", Port: ssdpPort}

	text := string(data)
	line, rest, _ := strings.Cut(text, "\r\n")
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") || fields[1] != "200" {
		return obs, false
	}

	obs.Exposed = true
	for _, header := range strings.Split(rest, "\r\n") {
		name, value, ok := strings.Cut(header, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "server":
			obs.Detail = strings.TrimSpace(value)
		case "st":
			if obs.Detail == "" {
				obs.Detail = strings.TrimSpace(value)
			}
		}
	}
	return obs, true
}

// checkMDNS looks for service advertisements attributable to the target
// address.
func (p *ExposureProber) checkMDNS(ctx context.Context, host string, timeout time.Duration) domain.ProtocolObservation {
	obs := domain.ProtocolObservation{ProtocolName: "mdns"}

	lookup := p.MDNSLookup
	if lookup == nil {
		lookup = queryMDNS
	}
	entries, err := lookup(ctx, timeout)
	if err != nil {
		return obs
	}

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		if (entry.AddrV4 != nil && entry.AddrV4.String() == host) ||
			(entry.AddrV6 != nil && entry.AddrV6.String() == host) {
			obs.Exposed = true
			obs.Detail = strings.TrimSuffix(entry.Name, ".")
			break
		}
	}
	return obs
}

func queryMDNS(ctx context.Context, timeout time.Duration) ([]*mdns.ServiceEntry, error) {
	entriesCh := make(chan *mdns.ServiceEntry, 64)
	params := &mdns.QueryParam{
		Service:     "_services._dns-sd._udp",
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entriesCh,
		DisableIPv6: true,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(entriesCh)
		errCh <- mdns.Query(params)
	}()

	var entries []*mdns.ServiceEntry
	for {
		select {
		case entry, ok := <-entriesCh:
			if !ok {
				return entries, <-errCh
			}
			entries = append(entries, entry)
		case <-ctx.Done():
			return entries, ctx.Err()
		}
	}
}

// checkMQTT attempts one anonymous CONNECT against the standard broker
// port. Success means the broker accepts unauthenticated clients.
func (p *ExposureProber) checkMQTT(ctx context.Context, host string, timeout time.Duration) domain.ProtocolObservation {
	obs := domain.ProtocolObservation{ProtocolName: "mqtt", Port: mqttPort}

	port := mqttPort
	if p.mqttPortOverride != 0 {
		port = p.mqttPortOverride
	}
	opts := mqtt.NewClientOptions().
		AddBroker("tcp://" + net.JoinHostPort(host, strconv.Itoa(port))).
		SetClientID(fmt.Sprintf("iotscan-%d", time.Now().UnixNano()%100000)).
		SetConnectTimeout(timeout).
		SetAutoReconnect(false).
		SetConnectRetry(false)

	client := mqtt.NewClient(opts)
	token := client.Connect()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return obs
		}
	case <-timer.C:
		return obs
	case <-ctx.Done():
		return obs
	}
	defer client.Disconnect(100)

	obs.Exposed = true
	obs.Detail = "anonymous connect accepted"
	return obs
}

// checkCoAPS attempts a DTLS handshake against the secure CoAP port. A
// completed handshake means the endpoint is reachable without client
// authentication.
func (p *ExposureProber) checkCoAPS(ctx context.Context, host string, timeout time.Duration) domain.ProtocolObservation {
	obs := domain.ProtocolObservation{ProtocolName: "coaps", Port: coapsPort}

	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(coapsPort)))
	if err != nil {
		return obs
	}

	conn, err := dtls.Dial("udp", raddr, &dtls.Config{InsecureSkipVerify: true})
	if err != nil {
		return obs
	}
	defer conn.Close()

	// Dial is lazy; only the explicit handshake proves something answers.
	hsCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.HandshakeContext(hsCtx); err != nil {
		return obs
	}

	obs.Exposed = true
	obs.Detail = "dtls handshake completed"
	return obs
}
