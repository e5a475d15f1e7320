package sink

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyslog_TCPNewlineFraming(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	lines := make(chan string, 4)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	s := NewSyslog(TypeTCP, ln.Addr().String(), time.Second, testLogger())
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "first"))
	require.NoError(t, s.Write(ctx, "second"))

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-lines:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}

func TestSyslog_UDPOneDatagramPerRecord(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	s := NewSyslog(TypeUDP, pc.LocalAddr().String(), time.Second, testLogger())
	defer s.Close()

	require.NoError(t, s.Write(context.Background(), "CEF:0|a|b"))

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "CEF:0|a|b", string(buf[:n]))
}

func TestSyslog_RedialsAfterFailedWrite(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	s := NewSyslog(TypeTCP, ln.Addr().String(), time.Second, testLogger())
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "one"))

	// Break the client side of the connection.
	s.conn.Close()
	err = s.Write(ctx, "two")
	require.Error(t, err)
	assert.Nil(t, s.conn)

	require.NoError(t, s.Write(ctx, "three"))
	assert.NotNil(t, s.conn)

	for i := 0; i < 2; i++ {
		select {
		case c := <-accepted:
			c.Close()
		case <-time.After(2 * time.Second):
			t.Fatal("expected two connections")
		}
	}
}

func TestSyslog_DialFailureIsReturned(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	s := NewSyslog(TypeTCP, addr, 200*time.Millisecond, testLogger())
	assert.Error(t, s.Write(context.Background(), "lost"))
	assert.NoError(t, s.Close())
}
