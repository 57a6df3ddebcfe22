// Package client fetches a status document from a running syswatch
// daemon. Connecting is enough to trigger a snapshot; the response is a
// single JSON document terminated by the connection close.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"gitlab.com/tinyland/lab/syswatch/server"
)

// DefaultTimeout bounds the dial and the full read of the document.
const DefaultTimeout = 5 * time.Second

// Fetch connects to addr (host:port), reads the status document to EOF
// and decodes it.
func Fetch(addr string, timeout time.Duration) (*server.Status, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(timeout))
	data, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("client: read status from %s: %w", addr, err)
	}

	var st server.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("client: decode status: %w", err)
	}
	return &st, nil
}
