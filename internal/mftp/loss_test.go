package mftp

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestLossInjector_ZeroProbabilityAlwaysKeeps(t *testing.T) {
	t.Parallel()

	seed := uint64(1)
	l := newLossInjector(0, clockwork.NewFakeClock(), &seed)
	for i := 0; i < 1000; i++ {
		require.True(t, l.keep())
	}
}

func TestLossInjector_SeedIsDeterministic(t *testing.T) {
	t.Parallel()

	seed := uint64(42)
	a := newLossInjector(0.5, clockwork.NewFakeClock(), &seed)
	b := newLossInjector(0.5, clockwork.NewFakeClock(), &seed)

	for i := 0; i < 200; i++ {
		require.Equal(t, a.keep(), b.keep())
	}
}

func TestLossInjector_ApproximatesConfiguredRate(t *testing.T) {
	t.Parallel()

	seed := uint64(7)
	l := newLossInjector(0.3, clockwork.NewFakeClock(), &seed)

	const n = 20000
	dropped := 0
	for i := 0; i < n; i++ {
		if !l.keep() {
			dropped++
		}
	}

	rate := float64(dropped) / float64(n)
	require.InDelta(t, 0.3, rate, 0.02)
}
