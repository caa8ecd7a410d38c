package probe

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kroeungcyber/iotscan/internal/catalog"
	"github.com/kroeungcyber/iotscan/internal/domain"
)

// CredentialProber tries a fixed, ordered list of well-known default
// credential pairs against the auth-capable services found by discovery.
// It stops at the first success per service and enforces a minimum delay
// between attempts against the same service. It never expands beyond the
// catalog's known-defaults list.
type CredentialProber struct {
	Log     *logrus.Entry
	Catalog *catalog.Catalog
}

func (CredentialProber) Kind() domain.ProbeKind { return domain.ProbeCredential }

func (p *CredentialProber) Probe(ctx context.Context, target domain.Target, in Intensity, prior []domain.Observation) ([]domain.Observation, error) {
	endpoints := authCapableEndpoints(prior)
	if len(endpoints) == 0 {
		endpoints = fallbackEndpoints(in.Ports)
	}
	if len(endpoints) == 0 {
		return nil, nil
	}

	creds := p.Catalog.CredentialsFor(target.DeviceHint)
	perAttempt := attemptTimeout(in)

	log := p.Log.WithFields(logrus.Fields{
		"target":    target.Address,
		"services":  len(endpoints),
		"wordlist":  len(creds),
		"min_delay": in.AttemptDelay,
	})
	log.Info("Starting credential probe")

	var obs []domain.Observation
	reached := false

	for _, ep := range endpoints {
		addr := net.JoinHostPort(target.Address, strconv.Itoa(int(ep.port)))

		gated, err := p.serviceGated(ctx, ep.service, addr, perAttempt)
		if err == nil {
			reached = true
		}
		if err != nil || !gated {
			continue
		}

		for i, cred := range creds {
			if i > 0 {
				if err := sleepAttempt(ctx, in.AttemptDelay); err != nil {
					return capObservations(obs, in.MaxObservations), err
				}
			}

			ok, err := p.attempt(ctx, ep.service, addr, cred, perAttempt)
			if err != nil {
				log.WithFields(logrus.Fields{"service": ep.service, "endpoint": addr}).
					WithError(err).Debug("Credential attempt errored")
				continue
			}
			reached = true

			obs = append(obs, domain.NewCredentialObservation(domain.ProbeCredential, domain.CredentialObservation{
				Service:   ep.service,
				Endpoint:  addr,
				Username:  cred.Username,
				Password:  cred.Password,
				Succeeded: ok,
			}))
			if len(obs) >= in.MaxObservations && in.MaxObservations > 0 {
				return obs, nil
			}
			if ok {
				log.WithFields(logrus.Fields{"service": ep.service, "endpoint": addr, "username": cred.Username}).
					Warn("Default credentials accepted")
				break
			}
		}
	}

	if !reached && len(obs) == 0 {
		return nil, fmt.Errorf("no auth-capable service reachable on %s", target.Address)
	}
	log.WithField("attempts", len(obs)).Info("Credential probe complete")
	return capObservations(obs, in.MaxObservations), nil
}

// serviceGated checks whether the service challenges for authentication at
// all; ungated services are skipped rather than "cracked".
func (p *CredentialProber) serviceGated(ctx context.Context, service, addr string, timeout time.Duration) (bool, error) {
	switch service {
	case serviceHTTP, serviceHTTPS:
		status, hdr, err := p.httpGet(ctx, service, addr, nil, timeout)
		if err != nil {
			return false, err
		}
		if status != http.StatusUnauthorized {
			return false, nil
		}
		// Only Basic challenges are attempted; Digest would need a different client.
		return strings.Contains(strings.ToLower(hdr), "basic"), nil
	case serviceRTSP:
		status, err := p.rtspDescribe(ctx, addr, "", timeout)
		if err != nil {
			return false, err
		}
		return status == 401, nil
	case serviceTelnet:
		return true, nil
	}
	return false, nil
}

func (p *CredentialProber) attempt(ctx context.Context, service, addr string, cred catalog.Credential, timeout time.Duration) (bool, error) {
	switch service {
	case serviceHTTP, serviceHTTPS:
		status, _, err := p.httpGet(ctx, service, addr, &cred, timeout)
		if err != nil {
			return false, err
		}
		return status >= 200 && status < 300, nil
	case serviceRTSP:
		auth := base64.StdEncoding.EncodeToString([]byte(cred.Username + ":" + cred.Password))
		status, err := p.rtspDescribe(ctx, addr, "Basic "+auth, timeout)
		if err != nil {
			return false, err
		}
		return status == 200, nil
	case serviceTelnet:
		return p.telnetLogin(ctx, addr, cred, timeout)
	}
	return false, fmt.Errorf("unsupported service %q", service)
}

func (p *CredentialProber) httpGet(ctx context.Context, service, addr string, cred *catalog.Credential, timeout time.Duration) (int, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scheme := "http"
	if service == serviceHTTPS {
		scheme = "https"
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, scheme+"://"+addr+"/", nil)
	if err != nil {
		return 0, "", err
	}
	if cred != nil {
		req.SetBasicAuth(cred.Username, cred.Password)
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("WWW-Authenticate"), nil
}

// rtspDescribe issues a single DESCRIBE and returns the RTSP status code.
func (p *CredentialProber) rtspDescribe(ctx context.Context, addr, authorization string, timeout time.Duration) (int, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	uri := "rtsp://" + addr + "/"
	var b strings.Builder
	fmt.Fprintf(&b, "DESCRIBE %s RTSP/1.0\r\n", uri)
	b.WriteString("CSeq: 1\r\n")
	b.WriteString("Accept: application/sdp\r\n")
	if authorization != "" {
		fmt.Fprintf(&b, "Authorization: %s\r\n", authorization)
	}
	b.WriteString("\r\n")

	if _, err := conn.Write([]byte(b.String())); err != nil {
		return 0, err
	}

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return 0, err
	}
	return parseRTSPStatus(string(buf[:n]))
}

func parseRTSPStatus(response string) (int, error) {
	line, _, _ := strings.Cut(response, "\r\n")
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "RTSP/") {
		return 0, fmt.Errorf("malformed RTSP status line %q", line)
	}
	return strconv.Atoi(fields[1])
}

// telnetLogin walks a login prompt dialogue and reports whether a shell
// prompt came back.
func (p *CredentialProber) telnetLogin(ctx context.Context, addr string, cred catalog.Credential, timeout time.Duration) (bool, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := readUntil(conn, "login:", "sername:"); err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(conn, "%s\r\n", cred.Username); err != nil {
		return false, err
	}
	if _, err := readUntil(conn, "assword:"); err != nil {
		return false, err
	}
	if _, err := fmt.Fprintf(conn, "%s\r\n", cred.Password); err != nil {
		return false, err
	}

	follow, err := readUntil(conn, "$", "#", ">", "incorrect", "failed", "denied")
	if err != nil {
		return false, err
	}
	lowered := strings.ToLower(follow)
	if strings.Contains(lowered, "incorrect") || strings.Contains(lowered, "failed") || strings.Contains(lowered, "denied") {
		return false, nil
	}
	return true, nil
}

func readUntil(conn net.Conn, markers ...string) (string, error) {
	var collected strings.Builder
	buf := make([]byte, 256)
	for collected.Len() < 4096 {
		n, err := conn.Read(buf)
		if n > 0 {
			collected.Write(buf[:n])
			text := collected.String()
			for _, marker := range markers {
				if strings.Contains(text, marker) {
					return text, nil
				}
			}
		}
		if err != nil {
			return collected.String(), err
		}
	}
	return collected.String(), fmt.Errorf("no expected prompt within %d bytes", collected.Len())
}

// fallbackEndpoints builds the auth-capable service set from the profile
// port list when no discovery output is available.
func fallbackEndpoints(ports []uint16) []endpoint {
	var out []endpoint
	for _, port := range ports {
		if svc, ok := wellKnownServices[port]; ok {
			out = append(out, endpoint{service: svc, port: port})
		}
	}
	return out
}
