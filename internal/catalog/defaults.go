package catalog

import "github.com/kroeungcyber/iotscan/internal/domain"

func boolPtr(b bool) *bool { return &b }

// defaultDocument mirrors the shipped iot_signatures file for when no
// catalog is available on disk.
func defaultDocument() document {
	return document{
		Vendors: map[string]Vendor{
			"hikvision": {
				Ports: []uint16{80, 443, 554, 8000, 8080, 34567},
				Credentials: []Credential{
					{Username: "admin", Password: "12345"},
					{Username: "admin", Password: "admin"},
				},
				CVEs:      []string{"CVE-2017-7921", "CVE-2021-36260"},
				RTSPPaths: []string{"/Streaming/Channels/101", "/cam/realmonitor"},
				WebPaths:  []string{"/", "/doc/page/login.asp"},
			},
			"dahua": {
				Ports: []uint16{80, 443, 554, 37777, 37778},
				Credentials: []Credential{
					{Username: "admin", Password: "admin"},
					{Username: "admin", Password: ""},
				},
				CVEs:      []string{"CVE-2021-33044", "CVE-2022-30563"},
				RTSPPaths: []string{"/cam/realmonitor", "/live.sdp"},
				WebPaths:  []string{"/", "/cgi-bin/login.cgi"},
			},
			"axis": {
				Ports: []uint16{80, 443, 554},
				Credentials: []Credential{
					{Username: "root", Password: "pass"},
					{Username: "admin", Password: ""},
				},
				CVEs:      []string{"CVE-2018-10660"},
				RTSPPaths: []string{"/axis-media/media.amp", "/live.sdp"},
				WebPaths:  []string{"/", "/view/view.shtml"},
			},
		},
		Signatures: []domain.Signature{
			{
				ID:          "default-credentials",
				Match:       domain.MatchRule{Kind: domain.ObsCredential},
				Severity:    domain.SeverityCritical,
				Description: "Device accepts a well-known default username/password pair.",
				Remediation: "Change default passwords immediately.",
			},
			{
				ID:          "unauthenticated-stream",
				Match:       domain.MatchRule{Kind: domain.ObsStream, AuthRequired: boolPtr(false)},
				Severity:    domain.SeverityHigh,
				Description: "Media stream is reachable without authentication.",
				Remediation: "Enable stream authentication and restrict network access.",
			},
			{
				ID:          "unencrypted-stream",
				Match:       domain.MatchRule{Kind: domain.ObsStream, Pattern: `^rtsp://`},
				Severity:    domain.SeverityMedium,
				Description: "Video stream is served over unencrypted RTSP, allowing eavesdropping.",
				Remediation: "Use encrypted protocols (RTSPS, HTTPS) where the device supports them.",
			},
			{
				ID:          "telnet-exposed",
				Match:       domain.MatchRule{Kind: domain.ObsPort, Ports: []uint16{23}},
				Severity:    domain.SeverityHigh,
				Description: "Telnet management service is exposed; credentials travel in clear text.",
				Remediation: "Disable telnet and use SSH or the vendor management channel.",
			},
			{
				ID:          "dvr-management-port",
				Match:       domain.MatchRule{Kind: domain.ObsPort, Ports: []uint16{34567, 37777, 37778}},
				Severity:    domain.SeverityMedium,
				Description: "Proprietary DVR management port is reachable from the network.",
				Remediation: "Restrict DVR management ports to trusted hosts.",
				CVEs:        []string{"CVE-2021-33044"},
			},
			{
				ID:          "hikvision-firmware",
				Match:       domain.MatchRule{Kind: domain.ObsFirmware, Pattern: `(?i)hikvision`},
				Severity:    domain.SeverityHigh,
				Description: "Hikvision firmware banner detected; check the version against known CVEs.",
				Remediation: "Update to the latest firmware version.",
				CVEs:        []string{"CVE-2017-7921", "CVE-2021-36260"},
			},
			{
				ID:          "dahua-firmware",
				Match:       domain.MatchRule{Kind: domain.ObsFirmware, Pattern: `(?i)dahua`},
				Severity:    domain.SeverityHigh,
				Description: "Dahua firmware banner detected; check the version against known CVEs.",
				Remediation: "Update to the latest firmware version.",
				CVEs:        []string{"CVE-2021-33044", "CVE-2022-30563"},
			},
			{
				ID:          "axis-firmware",
				Match:       domain.MatchRule{Kind: domain.ObsFirmware, Pattern: `(?i)axis`},
				Severity:    domain.SeverityHigh,
				Description: "Axis firmware banner detected; check the version against known CVEs.",
				Remediation: "Update to the latest firmware version.",
				CVEs:        []string{"CVE-2018-10660"},
			},
			{
				ID:          "upnp-exposed",
				Match:       domain.MatchRule{Kind: domain.ObsProtocol, Protocol: "upnp", Exposed: boolPtr(true)},
				Severity:    domain.SeverityMedium,
				Description: "Device answers UPnP discovery, disclosing model and service details.",
				Remediation: "Disable UPnP or block SSDP at the network boundary.",
			},
			{
				ID:          "mqtt-anonymous-access",
				Match:       domain.MatchRule{Kind: domain.ObsProtocol, Protocol: "mqtt", Exposed: boolPtr(true)},
				Severity:    domain.SeverityHigh,
				Description: "MQTT broker accepts anonymous connections.",
				Remediation: "Require broker authentication and TLS.",
			},
			{
				ID:          "mdns-advertised",
				Match:       domain.MatchRule{Kind: domain.ObsProtocol, Protocol: "mdns", Exposed: boolPtr(true)},
				Severity:    domain.SeverityLow,
				Description: "Device advertises services over mDNS.",
				Remediation: "Limit mDNS to trusted network segments.",
			},
			{
				ID:          "coaps-endpoint",
				Match:       domain.MatchRule{Kind: domain.ObsProtocol, Protocol: "coaps", Exposed: boolPtr(true)},
				Severity:    domain.SeverityInfo,
				Description: "CoAPS (DTLS) endpoint is reachable.",
				Remediation: "Verify the endpoint requires client authentication.",
			},
		},
	}
}
