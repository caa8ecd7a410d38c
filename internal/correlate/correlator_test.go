package correlate

import (
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/kroeungcyber/iotscan/internal/catalog"
	"github.com/kroeungcyber/iotscan/internal/domain"
)

func testCorrelator(t *testing.T) *Correlator {
	t.Helper()
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return New(logrus.NewEntry(l), catalog.Default())
}

func TestCorrelate_SuccessfulLoginIsAlwaysCritical(t *testing.T) {
	c := testCorrelator(t)
	target := domain.Target{Address: "192.168.1.50"}

	obs := []domain.Observation{
		domain.NewPortObservation(domain.ProbePortScan, domain.PortObservation{
			Port: 554, Protocol: "tcp", Service: "rtsp", Banner: "Hikvision DVR rtspd",
		}),
		domain.NewCredentialObservation(domain.ProbeCredential, domain.CredentialObservation{
			Service: "rtsp", Endpoint: "rtsp://192.168.1.50:554/", Username: "admin", Password: "wrong",
		}),
		domain.NewCredentialObservation(domain.ProbeCredential, domain.CredentialObservation{
			Service: "rtsp", Endpoint: "rtsp://192.168.1.50:554/", Username: "admin", Password: "admin", Succeeded: true,
		}),
	}

	findings := c.Correlate(target, obs)
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want exactly 1: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.IssueID != IssueDefaultCredentials {
		t.Errorf("issue = %q, want %q", f.IssueID, IssueDefaultCredentials)
	}
	if f.Severity != domain.SeverityCritical {
		t.Errorf("severity = %q, want critical", f.Severity)
	}
	if len(f.Evidence) != 1 || f.Evidence[0].Credential == nil || !f.Evidence[0].Credential.Succeeded {
		t.Errorf("evidence should be the successful attempt, got %+v", f.Evidence)
	}
}

func TestCorrelate_FailedAttemptsProduceNothing(t *testing.T) {
	c := testCorrelator(t)
	obs := []domain.Observation{
		domain.NewCredentialObservation(domain.ProbeCredential, domain.CredentialObservation{
			Service: "http", Endpoint: "http://10.0.0.5/", Username: "admin", Password: "12345",
		}),
		domain.NewCredentialObservation(domain.ProbeCredential, domain.CredentialObservation{
			Service: "telnet", Endpoint: "10.0.0.5:23", Username: "root", Password: "pass",
		}),
	}
	if findings := c.Correlate(domain.Target{Address: "10.0.0.5"}, obs); len(findings) != 0 {
		t.Fatalf("failed attempts yielded findings: %+v", findings)
	}
}

func TestCorrelate_DeduplicatesKeepingFirstEvidence(t *testing.T) {
	c := testCorrelator(t)
	first := domain.NewStreamObservation(domain.ProbeStream, domain.StreamObservation{
		URI: "rtsp://10.0.0.7:554/live.sdp", AuthRequired: false, Codec: "H264",
	})
	second := domain.NewStreamObservation(domain.ProbeStream, domain.StreamObservation{
		URI: "rtsp://10.0.0.7:554/cam/realmonitor", AuthRequired: false, Codec: "H264",
	})

	findings := c.Correlate(domain.Target{Address: "10.0.0.7"}, []domain.Observation{first, second})

	// An open RTSP stream trips both the missing-auth and the
	// cleartext-transport signatures.
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2: %+v", len(findings), findings)
	}
	if findings[0].IssueID != "unauthenticated-stream" || findings[1].IssueID != "unencrypted-stream" {
		t.Fatalf("order = [%s %s]", findings[0].IssueID, findings[1].IssueID)
	}
	for _, f := range findings {
		if len(f.Evidence) != 1 || f.Evidence[0].Stream.URI != first.Stream.URI {
			t.Errorf("%s: evidence should be the first matching observation, got %+v", f.IssueID, f.Evidence)
		}
	}
}

func TestCorrelate_OrderingAndIdempotence(t *testing.T) {
	c := testCorrelator(t)
	obs := []domain.Observation{
		domain.NewProtocolObservation(domain.ProbeExposure, domain.ProtocolObservation{
			ProtocolName: "mdns", Exposed: true, Detail: "camera._rtsp._tcp.local",
		}),
		domain.NewProtocolObservation(domain.ProbeExposure, domain.ProtocolObservation{
			ProtocolName: "upnp", Exposed: true, Port: 1900, Detail: "Hikvision UPnP/1.0",
		}),
		domain.NewFirmwareObservation(domain.ProbeFirmware, domain.FirmwareObservation{
			VendorGuess: "hikvision", VersionString: "5.4.5", SourcePort: 554,
		}),
		domain.NewCredentialObservation(domain.ProbeCredential, domain.CredentialObservation{
			Service: "http", Endpoint: "http://10.0.0.8/", Username: "admin", Password: "12345", Succeeded: true,
		}),
	}

	findings := c.Correlate(domain.Target{Address: "10.0.0.8"}, obs)

	wantOrder := []string{"default-credentials", "hikvision-firmware", "upnp-exposed", "mdns-advertised"}
	if len(findings) != len(wantOrder) {
		t.Fatalf("got %d findings, want %d: %+v", len(findings), len(wantOrder), findings)
	}
	for i, want := range wantOrder {
		if findings[i].IssueID != want {
			t.Errorf("findings[%d] = %q, want %q", i, findings[i].IssueID, want)
		}
	}
	if top := domain.TopSeverity(findings); top != domain.SeverityCritical {
		t.Errorf("top severity = %q, want critical", top)
	}

	again := c.Correlate(domain.Target{Address: "10.0.0.8"}, obs)
	if !reflect.DeepEqual(findings, again) {
		t.Error("correlation is not idempotent over the same observation set")
	}
}

func TestCorrelate_PortSignatures(t *testing.T) {
	c := testCorrelator(t)
	obs := []domain.Observation{
		domain.NewPortObservation(domain.ProbePortScan, domain.PortObservation{Port: 23, Protocol: "tcp", Service: "telnet"}),
		domain.NewPortObservation(domain.ProbePortScan, domain.PortObservation{Port: 37777, Protocol: "tcp"}),
		domain.NewPortObservation(domain.ProbePortScan, domain.PortObservation{Port: 554, Protocol: "tcp", Service: "rtsp"}),
	}

	findings := c.Correlate(domain.Target{Address: "10.0.0.3"}, obs)
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2: %+v", len(findings), findings)
	}
	if findings[0].IssueID != "telnet-exposed" || findings[1].IssueID != "dvr-management-port" {
		t.Errorf("order = [%s %s]", findings[0].IssueID, findings[1].IssueID)
	}
}

func TestCorrelate_EmptyInput(t *testing.T) {
	c := testCorrelator(t)
	if findings := c.Correlate(domain.Target{Address: "10.0.0.1"}, nil); len(findings) != 0 {
		t.Fatalf("nil observations yielded findings: %+v", findings)
	}
}
