package domain

import "fmt"

// ProbeKind identifies one probe module strategy.
type ProbeKind string

const (
	ProbePortScan   ProbeKind = "portscan"
	ProbeCredential ProbeKind = "credential"
	ProbeStream     ProbeKind = "stream"
	ProbeFirmware   ProbeKind = "firmware"
	ProbeExposure   ProbeKind = "exposure"
)

// ObservationKind discriminates the Observation variants.
type ObservationKind string

const (
	ObsPort       ObservationKind = "port"
	ObsCredential ObservationKind = "credential"
	ObsStream     ObservationKind = "stream"
	ObsFirmware   ObservationKind = "firmware"
	ObsProtocol   ObservationKind = "protocol"
)

// Observation is one raw datum emitted by a probe module. It is a closed
// tagged union: Kind names the variant and exactly one of the variant
// pointers is set. Observations are immutable once emitted.
type Observation struct {
	Module ProbeKind       `json:"module"`
	Kind   ObservationKind `json:"kind"`

	Port       *PortObservation       `json:"port,omitempty"`
	Credential *CredentialObservation `json:"credential,omitempty"`
	Stream     *StreamObservation     `json:"stream,omitempty"`
	Firmware   *FirmwareObservation   `json:"firmware,omitempty"`
	Protocol   *ProtocolObservation   `json:"protocol,omitempty"`
}

// PortObservation records an open port and any banner captured on connect.
type PortObservation struct {
	Port     uint16 `json:"port"`
	Protocol string `json:"protocol"` // tcp or udp
	Service  string `json:"service,omitempty"`
	Banner   string `json:"banner,omitempty"`
}

// CredentialObservation records a single default-credential attempt.
type CredentialObservation struct {
	Service   string `json:"service"`
	Endpoint  string `json:"endpoint"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Succeeded bool   `json:"succeeded"`
}

// StreamObservation records media endpoint metadata. No media content is
// ever retrieved or stored.
type StreamObservation struct {
	URI          string `json:"uri"`
	AuthRequired bool   `json:"auth_required"`
	Codec        string `json:"codec,omitempty"`
}

// FirmwareObservation is derived from banners already captured by the port
// probe; it carries no network side effect of its own.
type FirmwareObservation struct {
	VendorGuess   string `json:"vendor_guess,omitempty"`
	VersionString string `json:"version_string,omitempty"`
	SourcePort    uint16 `json:"source_port,omitempty"`
}

// ProtocolObservation records smart-home protocol endpoint exposure.
type ProtocolObservation struct {
	ProtocolName string `json:"protocol_name"`
	Exposed      bool   `json:"exposed"`
	Port         uint16 `json:"port,omitempty"`
	Detail       string `json:"detail,omitempty"`
}

func NewPortObservation(module ProbeKind, p PortObservation) Observation {
	return Observation{Module: module, Kind: ObsPort, Port: &p}
}

func NewCredentialObservation(module ProbeKind, c CredentialObservation) Observation {
	return Observation{Module: module, Kind: ObsCredential, Credential: &c}
}

func NewStreamObservation(module ProbeKind, s StreamObservation) Observation {
	return Observation{Module: module, Kind: ObsStream, Stream: &s}
}

func NewFirmwareObservation(module ProbeKind, f FirmwareObservation) Observation {
	return Observation{Module: module, Kind: ObsFirmware, Firmware: &f}
}

func NewProtocolObservation(module ProbeKind, p ProtocolObservation) Observation {
	return Observation{Module: module, Kind: ObsProtocol, Protocol: &p}
}

// Summary renders a short human-readable description of the observation,
// used in logs and report evidence.
func (o Observation) Summary() string {
	switch o.Kind {
	case ObsPort:
		return fmt.Sprintf("port %d/%s open (%s)", o.Port.Port, o.Port.Protocol, o.Port.Service)
	case ObsCredential:
		outcome := "failed"
		if o.Credential.Succeeded {
			outcome = "succeeded"
		}
		return fmt.Sprintf("%s login %s on %s (%s)", o.Credential.Service, outcome, o.Credential.Endpoint, o.Credential.Username)
	case ObsStream:
		return fmt.Sprintf("stream %s auth_required=%t", o.Stream.URI, o.Stream.AuthRequired)
	case ObsFirmware:
		return fmt.Sprintf("firmware %s %s", o.Firmware.VendorGuess, o.Firmware.VersionString)
	case ObsProtocol:
		return fmt.Sprintf("protocol %s exposed=%t", o.Protocol.ProtocolName, o.Protocol.Exposed)
	}
	return string(o.Kind)
}
