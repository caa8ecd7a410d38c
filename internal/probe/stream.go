package probe

import (
	"context"
	"crypto/tls"
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

// StreamProber checks media endpoints (RTSP playback paths and HTTP
// snapshot paths) for reachability and whether authentication is enforced.
// Only metadata is recorded; no media content is retrieved or stored.
type StreamProber struct {
	Log     *logrus.Entry
	Catalog *catalog.Catalog
}

func (StreamProber) Kind() domain.ProbeKind { return domain.ProbeStream }

func (p *StreamProber) Probe(ctx context.Context, target domain.Target, in Intensity, prior []domain.Observation) ([]domain.Observation, error) {
	rtspPorts, httpPorts := mediaPorts(prior)
	perAttempt := attemptTimeout(in)

	log := p.Log.WithFields(logrus.Fields{
		"target":     target.Address,
		"rtsp_ports": rtspPorts,
		"http_ports": httpPorts,
	})
	log.Info("Starting stream probe")

	var obs []domain.Observation
	reached := false
	first := true

	for _, port := range rtspPorts {
		for _, path := range p.Catalog.RTSPPaths() {
			if !first {
				if err := sleepAttempt(ctx, in.AttemptDelay); err != nil {
					return capObservations(obs, in.MaxObservations), err
				}
			}
			first = false

			o, err := p.describePath(ctx, target.Address, port, path, perAttempt)
			if err != nil {
				log.WithError(err).WithField("path", path).Debug("RTSP path check failed")
				continue
			}
			reached = true
			if o != nil {
				obs = append(obs, *o)
				if in.MaxObservations > 0 && len(obs) >= in.MaxObservations {
					return obs, nil
				}
				// One auth challenge settles the question for the whole port.
				if o.Stream.AuthRequired {
					break
				}
			}
		}
	}

	for _, port := range httpPorts {
		for _, path := range p.Catalog.WebPaths() {
			if !first {
				if err := sleepAttempt(ctx, in.AttemptDelay); err != nil {
					return capObservations(obs, in.MaxObservations), err
				}
			}
			first = false

			o, err := p.snapshotPath(ctx, target.Address, port, path, perAttempt)
			if err != nil {
				log.WithError(err).WithField("path", path).Debug("HTTP snapshot check failed")
				continue
			}
			reached = true
			if o != nil {
				obs = append(obs, *o)
				if in.MaxObservations > 0 && len(obs) >= in.MaxObservations {
					return obs, nil
				}
			}
		}
	}

	if !reached && len(obs) == 0 {
		return nil, fmt.Errorf("no media endpoint reachable on %s", target.Address)
	}
	log.WithField("streams", len(obs)).Info("Stream probe complete")
	return capObservations(obs, in.MaxObservations), nil
}

// describePath issues DESCRIBE against one playback path and records the
// endpoint's auth posture and codec.
func (p *StreamProber) describePath(ctx context.Context, host string, port uint16, path string, timeout time.Duration) (*domain.Observation, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	uri := "rtsp://" + addr + normalizePath(path)

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	fmt.Fprintf(conn, "DESCRIBE %s RTSP/1.0\r\nCSeq: 1\r\nAccept: application/sdp\r\n\r\n", uri)

	buf := make([]byte, 8192)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	response := string(buf[:n])

	status, err := parseRTSPStatus(response)
	if err != nil {
		return nil, err
	}

	switch status {
	case 200:
		o := domain.NewStreamObservation(domain.ProbeStream, domain.StreamObservation{
			URI:          uri,
			AuthRequired: false,
			Codec:        parseSDPCodec(response),
		})
		return &o, nil
	case 401:
		o := domain.NewStreamObservation(domain.ProbeStream, domain.StreamObservation{
			URI:          uri,
			AuthRequired: true,
		})
		return &o, nil
	}
	return nil, nil
}

// snapshotPath checks an HTTP snapshot/interface path; media bytes are
// never read past the headers.
func (p *StreamProber) snapshotPath(ctx context.Context, host string, port uint16, path string, timeout time.Duration) (*domain.Observation, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	uri := "http://" + addr + normalizePath(path)

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, uri, nil)
	if err != nil {
		return nil, err
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
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	switch {
	case resp.StatusCode == http.StatusOK && strings.HasPrefix(contentType, "image/"):
		o := domain.NewStreamObservation(domain.ProbeStream, domain.StreamObservation{
			URI:          uri,
			AuthRequired: false,
			Codec:        strings.TrimPrefix(contentType, "image/"),
		})
		return &o, nil
	case resp.StatusCode == http.StatusUnauthorized:
		o := domain.NewStreamObservation(domain.ProbeStream, domain.StreamObservation{
			URI:          uri,
			AuthRequired: true,
		})
		return &o, nil
	}
	return nil, nil
}

// parseSDPCodec extracts the codec name from the first rtpmap attribute of
// an SDP body.
func parseSDPCodec(response string) string {
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "a=rtpmap:") {
			continue
		}
		_, spec, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		codec, _, _ := strings.Cut(spec, "/")
		return codec
	}
	return ""
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}

// mediaPorts derives the media endpoints from discovery output, falling
// back to the standard RTSP port when no discovery ran.
func mediaPorts(prior []domain.Observation) (rtsp, web []uint16) {
	for _, p := range portObservations(prior) {
		switch serviceClass(p) {
		case serviceRTSP:
			rtsp = append(rtsp, p.Port)
		case serviceHTTP, serviceHTTPS:
			web = append(web, p.Port)
		}
	}
	if len(rtsp) == 0 && len(web) == 0 {
		rtsp = []uint16{554}
	}
	return rtsp, web
}
