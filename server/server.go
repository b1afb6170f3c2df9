// Package server implements the TLS transfer server: it terminates
// connections from paired devices, parses requests with the wire package,
// authenticates bearer tokens against the pairing service and routes to the
// transfer API handlers.
package server

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/vitalsync/device-transfer-backend/identity"
	"github.com/vitalsync/device-transfer-backend/interfaces"
	"github.com/vitalsync/device-transfer-backend/pairing"
	"github.com/vitalsync/device-transfer-backend/wire"
)

// State is the lifecycle state of the transfer server.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	maxHeaderBytes = 8 * 1024
	maxBodyBytes   = 1024 * 1024
)

var (
	// ErrNotStopped is returned by Start when the server is not in the
	// Stopped state.
	ErrNotStopped = errors.New("server: not stopped")

	// ErrNoIdentity is returned by Start when the TLS identity cannot be
	// obtained and insecure mode was not explicitly enabled.
	ErrNoIdentity = errors.New("server: no TLS identity")
)

// Config carries the transfer server configuration.
type Config struct {
	// ListenAddr is the address to bind, e.g. "0.0.0.0:0" for an
	// OS-assigned port.
	ListenAddr string

	// DeviceName is reported by the status endpoint.
	DeviceName string

	// Version is reported by the status endpoint.
	Version string

	// AllowInsecure permits starting without TLS when identity acquisition
	// fails. Off by default; a failed identity then fails Start outright.
	AllowInsecure bool

	Log *slog.Logger
}

// Server owns the listener, the active-connection set and the lifecycle
// state machine Stopped -> Starting -> Running | Failed.
type Server struct {
	cfg      Config
	identity *identity.Service
	pairing  *pairing.Service
	provider interfaces.DataProvider
	audit    interfaces.AuditSink
	log      *slog.Logger

	mu       sync.Mutex
	state    State
	failure  error
	port     int
	listener net.Listener
	conns    map[net.Conn]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a transfer server. Start must be called before it serves.
func New(cfg Config, identitySvc *identity.Service, pairingSvc *pairing.Service, provider interfaces.DataProvider, auditSink interfaces.AuditSink) *Server {
	return &Server{
		cfg:      cfg,
		identity: identitySvc,
		pairing:  pairingSvc,
		provider: provider,
		audit:    auditSink,
		log:      cfg.Log,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start obtains the TLS identity, binds the listener and begins accepting
// connections. It refuses to run unless the server is currently Stopped.
//
// When identity acquisition fails, Start fails outright unless
// Config.AllowInsecure was set, in which case a plaintext listener is bound
// and the degradation is logged and audited.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("%w: state is %s", ErrNotStopped, s.state)
	}
	s.state = StateStarting
	s.failure = nil
	s.mu.Unlock()

	listener, err := s.bindListener(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateFailed
		s.failure = err
		s.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.listener = listener
	s.cancel = cancel
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.state = StateRunning
	s.mu.Unlock()

	s.audit.RecordEvent(ctx, interfaces.AuditEvent{
		Type:   interfaces.EventServerStarted,
		Detail: fmt.Sprintf("port %d", s.port),
	})
	s.log.Info("Transfer server listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(runCtx, listener)
	return nil
}

// bindListener acquires the TLS identity and binds the listen socket.
func (s *Server) bindListener(ctx context.Context) (net.Listener, error) {
	id, idErr := s.identity.GetOrCreateIdentity(ctx)
	var cert tls.Certificate
	if idErr == nil {
		cert, idErr = id.TLSCertificate()
	}

	if idErr != nil {
		if !s.cfg.AllowInsecure {
			return nil, fmt.Errorf("%w: %v", ErrNoIdentity, idErr)
		}
		s.log.Error("TLS identity unavailable, starting WITHOUT transport security", "err", idErr)
		s.audit.RecordEvent(ctx, interfaces.AuditEvent{
			Type:   interfaces.EventInsecureStart,
			Detail: "identity acquisition failed",
		})
		listener, err := net.Listen("tcp", s.cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("binding listener: %w", err)
		}
		return listener, nil
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	listener, err := tls.Listen("tcp", s.cfg.ListenAddr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("binding TLS listener: %w", err)
	}
	return listener, nil
}

// Stop cancels the listener and every open connection, clears the
// connection set and returns the server to Stopped. Calling Stop on a
// stopped server is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.state != StateRunning && s.state != StateFailed {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[net.Conn]struct{})
	s.listener = nil
	s.cancel = nil
	s.port = 0
	s.state = StateStopped
	s.mu.Unlock()

	s.wg.Wait()
	s.audit.RecordEvent(context.Background(), interfaces.AuditEvent{Type: interfaces.EventServerStopped})
	s.log.Info("Transfer server stopped")
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Port returns the bound port while Running, zero otherwise.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Err returns the failure that moved the server to Failed, if any.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("Accept failed", "err", err)
			s.mu.Lock()
			if s.state == StateRunning {
				s.state = StateFailed
				s.failure = err
			}
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		if s.state != StateRunning {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

// handleConn serves a single request and closes the connection. The
// connection is dropped from the active set on the way out.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	raw, err := readRequestBytes(bufio.NewReader(conn))
	if err != nil {
		s.log.Debug("Dropping unreadable connection", "err", err, "remote", conn.RemoteAddr().String())
		return
	}

	req, err := wire.ParseRequest(raw)
	if err != nil {
		// Unparseable request: close without a response.
		s.log.Debug("Dropping unparseable request", "err", err, "remote", conn.RemoteAddr().String())
		return
	}

	s.audit.RecordEvent(ctx, interfaces.AuditEvent{
		Type:       interfaces.EventRequest,
		Method:     req.Method,
		Path:       req.Path,
		RemoteAddr: conn.RemoteAddr().String(),
	})

	resp := s.route(ctx, req, conn.RemoteAddr().String())

	// Never write after cancellation: the peer is gone and the socket may
	// already be closed.
	if ctx.Err() != nil {
		return
	}
	if _, err := conn.Write(resp.Marshal()); err != nil {
		s.log.Debug("Write failed", "err", err, "remote", conn.RemoteAddr().String())
	}
}

// readRequestBytes reads one request off the wire: the header block up to
// the blank line, then exactly Content-Length body bytes. Oversized headers
// or bodies are an error.
func readRequestBytes(r *bufio.Reader) ([]byte, error) {
	var head bytes.Buffer
	for {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("reading request head: %w", err)
		}
		head.WriteString(line)
		if head.Len() > maxHeaderBytes {
			return nil, fmt.Errorf("request head exceeds %d bytes", maxHeaderBytes)
		}
		if line == "\r\n" || line == "\n" {
			break
		}
		if err == io.EOF {
			break
		}
	}

	contentLength, err := scanContentLength(head.String())
	if err != nil {
		return nil, err
	}
	if contentLength == 0 {
		return head.Bytes(), nil
	}
	if contentLength > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	return append(head.Bytes(), body...), nil
}

// scanContentLength finds the Content-Length header in the raw head block,
// matched case-insensitively. Missing means zero.
func scanContentLength(head string) (int, error) {
	for _, line := range strings.Split(head, "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "content-length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return 0, fmt.Errorf("bad content-length %q", strings.TrimSpace(value))
			}
			return n, nil
		}
	}
	return 0, nil
}
