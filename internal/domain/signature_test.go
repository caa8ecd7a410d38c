package domain

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestMatchRule_Compile(t *testing.T) {
	tests := []struct {
		name    string
		rule    MatchRule
		wantErr bool
	}{
		{name: "valid port rule", rule: MatchRule{Kind: ObsPort, Ports: []uint16{23}}},
		{name: "valid pattern", rule: MatchRule{Kind: ObsFirmware, Pattern: "(?i)hikvision"}},
		{name: "bad pattern", rule: MatchRule{Kind: ObsFirmware, Pattern: "("}, wantErr: true},
		{name: "unknown kind", rule: MatchRule{Kind: "bogus"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Compile()
			if tc.wantErr && err == nil {
				t.Fatal("expected compile error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMatchRule_Matches(t *testing.T) {
	telnetPort := NewPortObservation(ProbePortScan, PortObservation{Port: 23, Protocol: "tcp", Service: "telnet"})
	rtspPort := NewPortObservation(ProbePortScan, PortObservation{Port: 554, Protocol: "tcp", Service: "rtsp", Banner: "Hikvision DVR"})
	openStream := NewStreamObservation(ProbeStream, StreamObservation{URI: "rtsp://10.0.0.9:554/live.sdp", AuthRequired: false, Codec: "H264"})
	lockedStream := NewStreamObservation(ProbeStream, StreamObservation{URI: "rtsp://10.0.0.9:554/live.sdp", AuthRequired: true})
	upnp := NewProtocolObservation(ProbeExposure, ProtocolObservation{ProtocolName: "upnp", Exposed: true, Port: 1900})
	firmware := NewFirmwareObservation(ProbeFirmware, FirmwareObservation{VendorGuess: "hikvision", VersionString: "V5.4.5"})

	tests := []struct {
		name string
		rule MatchRule
		obs  Observation
		want bool
	}{
		{name: "port in set", rule: MatchRule{Kind: ObsPort, Ports: []uint16{23}}, obs: telnetPort, want: true},
		{name: "port not in set", rule: MatchRule{Kind: ObsPort, Ports: []uint16{21}}, obs: telnetPort, want: false},
		{name: "kind mismatch", rule: MatchRule{Kind: ObsStream}, obs: telnetPort, want: false},
		{name: "banner pattern", rule: MatchRule{Kind: ObsPort, Pattern: "(?i)hikvision"}, obs: rtspPort, want: true},
		{name: "unauthenticated stream", rule: MatchRule{Kind: ObsStream, AuthRequired: boolPtr(false)}, obs: openStream, want: true},
		{name: "auth flag mismatch", rule: MatchRule{Kind: ObsStream, AuthRequired: boolPtr(false)}, obs: lockedStream, want: false},
		{name: "protocol exposure", rule: MatchRule{Kind: ObsProtocol, Protocol: "upnp", Exposed: boolPtr(true)}, obs: upnp, want: true},
		{name: "firmware vendor", rule: MatchRule{Kind: ObsFirmware, Pattern: "(?i)hikvision"}, obs: firmware, want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.rule.Compile(); err != nil {
				t.Fatalf("compile: %v", err)
			}
			if got := tc.rule.Matches(tc.obs); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
