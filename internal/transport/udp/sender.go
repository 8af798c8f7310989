// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"formant/internal/log"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("UDP sender is closed")

// writeTimeout bounds a single datagram write.
const writeTimeout = 50 * time.Millisecond

// UDPSender writes datagrams to one connected target.
type UDPSender struct {
	conn   *net.UDPConn
	target string
	mu     sync.Mutex // Serializes Send against Close.
	closed bool
	sent   uint64
	failed uint64
}

// NewUDPSender dials targetAddress ("host:port", e.g. "127.0.0.1:9090").
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	// A connected socket with an ephemeral local port.
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	log.Infof("UDPSender: Connection established to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn, target: conn.RemoteAddr().String()}, nil
}

// Target returns the resolved target address.
func (s *UDPSender) Target() string {
	return s.target
}

// Send writes data as one datagram.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := s.conn.Write(data); err != nil {
		s.failed++
		// A missing listener shows up here as ECONNREFUSED on the next write.
		log.Debugf("UDPSender: Error sending packet: %v", err)
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	s.sent++
	return nil
}

// Counts returns the number of successful and failed sends.
func (s *UDPSender) Counts() (sent, failed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.failed
}

// Close closes the connection. Further sends fail with ErrSenderClosed.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	log.Debugf("UDPSender: Closing connection to %s (sent %d, failed %d)", s.target, s.sent, s.failed)
	if err := s.conn.Close(); err != nil {
		log.Warnf("UDPSender: Error closing connection: %v", err)
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

// Ensure UDPSender satisfies the io.Closer interface.
var _ interface{ Close() error } = (*UDPSender)(nil)
