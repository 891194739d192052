package mftp

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// freeUDPPort finds an ephemeral port that's free at the moment of the
// call. There's an inherent TOCTOU race in reusing a closed port, but it's
// the standard shortcut for giving a Sender and several Receivers a shared
// port number ahead of time in tests.
func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())
	return port
}

type collectingReceiver struct {
	out  bytes.Buffer
	recv *Receiver
	done chan error
}

func startReceiver(t *testing.T, ctx context.Context, bindHost string, port int, mss uint16, loss float64) *collectingReceiver {
	t.Helper()
	return startReceiverSeeded(t, ctx, bindHost, port, mss, loss, nil)
}

func startReceiverSeeded(t *testing.T, ctx context.Context, bindHost string, port int, mss uint16, loss float64, seed *uint64) *collectingReceiver {
	t.Helper()
	cr := &collectingReceiver{done: make(chan error, 1)}
	r, err := NewReceiver(ReceiverConfig{
		BindHost:        bindHost,
		Port:            port,
		Output:          &cr.out,
		LossProbability: loss,
		Seed:            seed,
		ReportPath:      t.TempDir() + "/report.csv",
	})
	require.NoError(t, err)
	cr.recv = r
	go func() { cr.done <- r.Run(ctx) }()
	return cr
}

func sendAll(t *testing.T, sender *Sender, data []byte) {
	t.Helper()
	for _, b := range data {
		require.NoError(t, sender.Send(b))
	}
}

func TestTransfer_LosslessSingleDestination(t *testing.T) {
	t.Parallel()

	port := freeUDPPort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rx := startReceiver(t, ctx, "127.0.0.1", port, 8, 0)

	sender, err := NewSender(SenderConfig{
		Destinations: []string{"127.0.0.1"},
		Port:         port,
		MSS:          8,
		ReportPath:   t.TempDir() + "/report.csv",
	})
	require.NoError(t, err)

	message := []byte("the quick brown fox jumps over the lazy dog")
	sendAll(t, sender, message)
	require.NoError(t, sender.Shutdown(ctx))

	select {
	case err := <-rx.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never observed FIN")
	}

	require.Equal(t, message, rx.out.Bytes())
	require.Equal(t, uint64(0), sender.TimeoutEvents())
}

func TestTransfer_ShortLastPacket(t *testing.T) {
	t.Parallel()

	port := freeUDPPort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const mss = 10
	rx := startReceiver(t, ctx, "127.0.0.1", port, mss, 0)

	sender, err := NewSender(SenderConfig{
		Destinations: []string{"127.0.0.1"},
		Port:         port,
		MSS:          mss,
		ReportPath:   t.TempDir() + "/report.csv",
	})
	require.NoError(t, err)

	// 23 bytes over an MSS of 10: two full packets and one 3-byte residual
	// flushed by Shutdown's short-packet path.
	message := []byte("abcdefghijklmnopqrstuvw")
	require.Equal(t, 23, len(message))
	sendAll(t, sender, message)
	require.NoError(t, sender.Shutdown(ctx))

	require.NoError(t, <-rx.done)
	require.Equal(t, message, rx.out.Bytes())
}

func TestTransfer_EmptyFile(t *testing.T) {
	t.Parallel()

	port := freeUDPPort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rx := startReceiver(t, ctx, "127.0.0.1", port, 16, 0)

	sender, err := NewSender(SenderConfig{
		Destinations: []string{"127.0.0.1"},
		Port:         port,
		MSS:          16,
		ReportPath:   t.TempDir() + "/report.csv",
	})
	require.NoError(t, err)

	require.NoError(t, sender.Shutdown(ctx))

	require.NoError(t, <-rx.done)
	require.Empty(t, rx.out.Bytes())
	require.Equal(t, uint64(1), rx.recv.Accepted())
}

func TestTransfer_MultiDestinationFanOut(t *testing.T) {
	t.Parallel()

	port := freeUDPPort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rxA := startReceiver(t, ctx, "127.0.0.1", port, 6, 0)
	rxB := startReceiver(t, ctx, "127.0.0.2", port, 6, 0)

	sender, err := NewSender(SenderConfig{
		Destinations: []string{"127.0.0.1", "127.0.0.2"},
		Port:         port,
		MSS:          6,
		ReportPath:   t.TempDir() + "/report.csv",
	})
	require.NoError(t, err)

	message := []byte("fan out to every destination equally")
	sendAll(t, sender, message)
	require.NoError(t, sender.Shutdown(ctx))

	require.NoError(t, <-rxA.done)
	require.NoError(t, <-rxB.done)

	require.Equal(t, message, rxA.out.Bytes())
	require.Equal(t, message, rxB.out.Bytes())
}

func TestTransfer_SurvivesPacketLoss(t *testing.T) {
	port := freeUDPPort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seed := uint64(1234)
	rx := startReceiverSeeded(t, ctx, "127.0.0.1", port, 6, 0.3, &seed)

	sender, err := NewSender(SenderConfig{
		Destinations: []string{"127.0.0.1"},
		Port:         port,
		MSS:          6,
		ReportPath:   t.TempDir() + "/report.csv",
	})
	require.NoError(t, err)

	message := []byte("resilient delivery despite dropped packets")
	sendAll(t, sender, message)
	require.NoError(t, sender.Shutdown(ctx))

	select {
	case err := <-rx.done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("transfer did not complete under loss within the deadline")
	}

	// Byte-exactness must hold regardless of how many retransmissions the
	// adaptive timeout required.
	require.Equal(t, message, rx.out.Bytes())
}
