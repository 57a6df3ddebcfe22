// Package server serves the latest metrics and recent sample history over
// TCP. Each accepted connection gets one JSON document and is closed; no
// request is read, no session kept.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/syswatch/state"
)

const (
	// acceptTimeout bounds the listener wait so the accept loop re-checks
	// the running flag at least once a second.
	acceptTimeout = time.Second

	// writeTimeout bounds the response write per connection.
	writeTimeout = 5 * time.Second

	// timeFormat matches the timestamps in the metrics log.
	timeFormat = "2006-01-02 15:04:05"
)

// Status is the JSON document written to each connection.
type Status struct {
	Current Current        `json:"current"`
	Samples []StatusSample `json:"samples"`
}

// Current is the latest known utilization triple.
type Current struct {
	CPU    float64 `json:"cpu"`
	Memory float64 `json:"memory"`
	Disk   float64 `json:"disk"`
}

// StatusSample is one historical sample, oldest first in Status.Samples.
type StatusSample struct {
	Timestamp string  `json:"timestamp"`
	CPU       float64 `json:"cpu"`
	Memory    float64 `json:"memory"`
	Disk      float64 `json:"disk"`
}

// Server is the TCP status listener. Connections are accepted and served
// one at a time; a snapshot is cheap enough that serializing them keeps
// the locking story trivial.
type Server struct {
	port    int
	ring    *state.Ring
	metrics *state.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	addr net.Addr
}

// New creates a status server on the given TCP port. Port 0 binds an
// ephemeral port, which Addr exposes once Run has bound the listener.
func New(port int, ring *state.Ring, metrics *state.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{port: port, ring: ring, metrics: metrics, logger: logger}
}

// Addr returns the bound listener address, or nil before Run has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run binds the listener and serves until the running flag stops. A bind
// or listen failure disables only this worker: it is logged and Run
// returns, leaving the rest of the daemon operating without a status
// endpoint.
func (s *Server) Run(run *state.Running) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		s.logger.Error("status server bind failed, endpoint disabled",
			"port", s.port, "error", err)
		return
	}
	defer ln.Close()

	tcpLn := ln.(*net.TCPListener)
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.logger.Info("status server listening", "addr", ln.Addr().String())

	for run.Running() {
		if err := tcpLn.SetDeadline(time.Now().Add(acceptTimeout)); err != nil {
			s.logger.Debug("accept deadline set failed", "error", err)
		}
		conn, err := tcpLn.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		s.serveConn(conn)
	}
}

// serveConn writes one status document and closes the connection.
// Per-connection errors are logged and do not affect later connections.
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	data, err := json.Marshal(s.snapshot())
	if err != nil {
		s.logger.Error("status render failed", "error", err)
		return
	}
	data = append(data, '\n')

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(data); err != nil {
		s.logger.Warn("status write failed",
			"remote", conn.RemoteAddr().String(), "error", err)
	}
}

// snapshot takes one consistent reading of the current metrics and the
// ring buffer and renders it as a Status.
func (s *Server) snapshot() Status {
	cpu, memory, disk := s.metrics.Current()
	held := s.ring.Snapshot()

	samples := make([]StatusSample, len(held))
	for i, smp := range held {
		samples[i] = StatusSample{
			Timestamp: smp.Timestamp.Format(timeFormat),
			CPU:       smp.CPU,
			Memory:    smp.Memory,
			Disk:      smp.Disk,
		}
	}

	return Status{
		Current: Current{CPU: cpu, Memory: memory, Disk: disk},
		Samples: samples,
	}
}
