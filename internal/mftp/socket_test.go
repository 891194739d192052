package mftp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testRecvTimeout = 200 * time.Millisecond

func TestSocket_SendRecvLoopback(t *testing.T) {
	t.Parallel()

	server, err := bindInbound("", 0)
	require.NoError(t, err)
	defer server.Close()

	client, err := openOutbound()
	require.NoError(t, err)
	defer client.Close()

	port := server.LocalAddr().(*net.UDPAddr).Port
	target := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}

	require.NoError(t, sendTo(client, []byte("ping"), target))

	buf := make([]byte, 16)
	n, peer, err := recvFromAddr(server, buf, testRecvTimeout)
	require.NoError(t, err)
	require.NotNil(t, peer)
	require.Equal(t, "ping", string(buf[:n]))
}

func TestBindInbound_SpecificHost(t *testing.T) {
	t.Parallel()

	conn, err := bindInbound("127.0.0.1", 0)
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, "127.0.0.1", conn.LocalAddr().(*net.UDPAddr).IP.String())
}

func TestRecvFromPolling_TimesOutWithoutData(t *testing.T) {
	t.Parallel()

	conn, err := openOutbound()
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 16)
	n, err := recvFromPolling(conn, buf)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
