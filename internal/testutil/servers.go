// Package testutil provides mock device endpoints for probe tests: plain
// TCP servers with RTSP, telnet, and HTTP basic-auth behaviors.
package testutil

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// MockTCPServer is a simple TCP server for testing.
type MockTCPServer struct {
	listener net.Listener
	handler  func(net.Conn)
	wg       sync.WaitGroup
	closed   bool
	mu       sync.Mutex
}

// NewMockTCPServer creates a TCP server that calls handler for each
// connection. If handler is nil, it echoes received data back.
func NewMockTCPServer(handler func(net.Conn)) *MockTCPServer {
	if handler == nil {
		handler = func(conn net.Conn) {
			defer conn.Close()
			io.Copy(conn, conn)
		}
	}
	return &MockTCPServer{handler: handler}
}

// Start starts the server on a random loopback port.
func (s *MockTCPServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *MockTCPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handler(conn)
		}()
	}
}

// Stop stops the server.
func (s *MockTCPServer) Stop() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

// Addr returns the server address as host:port.
func (s *MockTCPServer) Addr() string {
	return s.listener.Addr().String()
}

// Port returns the server port.
func (s *MockTCPServer) Port() uint16 {
	return uint16(s.listener.Addr().(*net.TCPAddr).Port)
}

// RTSPConfig controls the mock camera's RTSP behavior.
type RTSPConfig struct {
	// RequireAuth makes DESCRIBE answer 401 unless the request carries the
	// accepted Basic credentials.
	RequireAuth bool
	Username    string
	Password    string
	// SDP is returned on successful DESCRIBE. Defaults to an H264 session.
	SDP string
	// Server is the Server header value.
	Server string
}

// NewRTSPServer creates a mock RTSP camera endpoint.
func NewRTSPServer(cfg RTSPConfig) *MockTCPServer {
	if cfg.SDP == "" {
		cfg.SDP = "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=stream\r\nm=video 0 RTP/AVP 96\r\na=rtpmap:96 H264/90000\r\n"
	}
	if cfg.Server == "" {
		cfg.Server = "Mock RTSP Server"
	}

	accepted := "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Username+":"+cfg.Password))

	return NewMockTCPServer(func(conn net.Conn) {
		defer conn.Close()
		reader := bufio.NewReader(conn)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			req, err := readRTSPRequest(reader)
			if err != nil {
				return
			}

			switch {
			case strings.HasPrefix(req.line, "OPTIONS"):
				fmt.Fprintf(conn, "RTSP/1.0 200 OK\r\nCSeq: %s\r\nServer: %s\r\nPublic: OPTIONS, DESCRIBE, SETUP, PLAY\r\n\r\n", req.cseq, cfg.Server)
			case strings.HasPrefix(req.line, "DESCRIBE"):
				if cfg.RequireAuth && req.authorization != accepted {
					fmt.Fprintf(conn, "RTSP/1.0 401 Unauthorized\r\nCSeq: %s\r\nWWW-Authenticate: Basic realm=\"camera\"\r\n\r\n", req.cseq)
					continue
				}
				fmt.Fprintf(conn, "RTSP/1.0 200 OK\r\nCSeq: %s\r\nServer: %s\r\nContent-Type: application/sdp\r\nContent-Length: %d\r\n\r\n%s",
					req.cseq, cfg.Server, len(cfg.SDP), cfg.SDP)
			default:
				fmt.Fprintf(conn, "RTSP/1.0 405 Method Not Allowed\r\nCSeq: %s\r\n\r\n", req.cseq)
			}
		}
	})
}

type rtspRequest struct {
	line          string
	cseq          string
	authorization string
}

func readRTSPRequest(reader *bufio.Reader) (rtspRequest, error) {
	var req rtspRequest
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return req, err
		}
		line = strings.TrimRight(line, "\r\n")
		if req.line == "" {
			if line == "" {
				continue
			}
			req.line = line
			continue
		}
		if line == "" {
			return req, nil
		}
		if name, value, ok := strings.Cut(line, ":"); ok {
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "cseq":
				req.cseq = strings.TrimSpace(value)
			case "authorization":
				req.authorization = strings.TrimSpace(value)
			}
		}
	}
}

// NewTelnetServer creates a mock telnet service that accepts exactly one
// username/password pair.
func NewTelnetServer(username, password string) *MockTCPServer {
	return NewMockTCPServer(func(conn net.Conn) {
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
		reader := bufio.NewReader(conn)

		fmt.Fprint(conn, "iotdev login: ")
		user, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fmt.Fprint(conn, "Password: ")
		pass, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		if strings.TrimSpace(user) == username && strings.TrimSpace(pass) == password {
			fmt.Fprint(conn, "Welcome to iotdev\r\n# ")
			return
		}
		fmt.Fprint(conn, "Login incorrect\r\n")
	})
}

// NewSSDPResponder answers a single M-SEARCH on a loopback UDP socket and
// returns the socket address plus a stop function.
func NewSSDPResponder(server string) (addr string, stop func(), err error) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 2048)
		for {
			n, remote, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if !strings.Contains(string(buf[:n]), "M-SEARCH") {
				continue
			}
			response := "HTTP/1.1 200 OK\r\n" +
				"CACHE-CONTROL: max-age=1800\r\n" +
				"ST: upnp:rootdevice\r\n" +
				"SERVER: " + server + "\r\n" +
				"LOCATION: http://127.0.0.1:49152/desc.xml\r\n" +
				"USN: uuid:mock-device::upnp:rootdevice\r\n\r\n"
			_, _ = conn.WriteTo([]byte(response), remote)
		}
	}()

	return conn.LocalAddr().String(), func() {
		conn.Close()
		<-done
	}, nil
}
