package sink

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runNATSServer(t *testing.T) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host: "127.0.0.1",
		Port: -1,
	})
	require.NoError(t, err)

	go ns.Start()
	if !ns.ReadyForConnections(4 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func TestNATS_PublishesRecords(t *testing.T) {
	ns := runNATSServer(t)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("secevents.alerts")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	s, err := NewNATS(context.Background(), NATSConfig{URL: ns.ClientURL(), Subject: "secevents.alerts"}, testLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(context.Background(), `{"id":"a"}`))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(msg.Data))
}

func TestNew_NATSFromAddress(t *testing.T) {
	ns := runNATSServer(t)
	addr := ns.Addr().String()

	s, err := New(context.Background(), Config{
		Type:    TypeNATS,
		Address: addr,
		NATS:    NATSConfig{Subject: "x"},
	}, testLogger())
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Write(context.Background(), "hello"))
}

func TestNATS_RequiresSubject(t *testing.T) {
	_, err := NewNATS(context.Background(), NATSConfig{URL: "nats://127.0.0.1:1"}, testLogger())
	assert.Error(t, err)
}
