package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Syslog forwards records to a syslog collector without a priority prefix.
// TCP records are newline framed; UDP sends one datagram per record.
//
// A failed write drops the connection and reports the error. The next Write
// dials again.
type Syslog struct {
	mu          sync.Mutex
	network     string
	addr        string
	dialTimeout time.Duration
	conn        net.Conn
	logger      *slog.Logger
}

func NewSyslog(network, addr string, dialTimeout time.Duration, logger *slog.Logger) *Syslog {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &Syslog{
		network:     network,
		addr:        addr,
		dialTimeout: dialTimeout,
		logger:      logger,
	}
}

func (s *Syslog) Write(ctx context.Context, record string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		if err := s.dial(ctx); err != nil {
			return err
		}
	}

	payload := record
	if s.network == TypeTCP {
		payload += "\n"
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
	} else {
		_ = s.conn.SetWriteDeadline(time.Time{})
	}

	if _, err := s.conn.Write([]byte(payload)); err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("write to %s://%s: %w", s.network, s.addr, err)
	}
	return nil
}

func (s *Syslog) dial(ctx context.Context) error {
	d := net.Dialer{Timeout: s.dialTimeout}
	conn, err := d.DialContext(ctx, s.network, s.addr)
	if err != nil {
		return fmt.Errorf("dial %s://%s: %w", s.network, s.addr, err)
	}
	s.conn = conn
	s.logger.Info("connected to syslog", "network", s.network, "addr", s.addr)
	return nil
}

func (s *Syslog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
