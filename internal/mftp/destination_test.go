package mftp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDestination_ResolvesAndOpensSocket(t *testing.T) {
	t.Parallel()

	d, err := newDestination("127.0.0.1", 9999)
	require.NoError(t, err)
	defer d.close()

	require.Equal(t, "127.0.0.1", d.host)
	require.Equal(t, 9999, d.addr.Port)
}

func TestDestination_AckedForCurrent(t *testing.T) {
	t.Parallel()

	d := &destination{}
	require.False(t, d.ackedForCurrent(0))

	d.ackedAt = 1
	require.True(t, d.ackedForCurrent(0))
	require.False(t, d.ackedForCurrent(1))
}
