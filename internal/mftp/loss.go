package mftp

import (
	"math/rand/v2"
	"os"

	"github.com/jonboulle/clockwork"
)

// lossInjector probabilistically drops accepted-looking DATA packets on
// the receiver, for loss experiments. The original seeds a process-global
// PRNG from pid*pid*wall_clock; here the generator is an explicit value
// owned by the Receiver, seeded once at construction.
type lossInjector struct {
	rng    *rand.Rand
	probBP int64 // basis points of 10,000
}

// newLossInjector builds a generator seeded from (pid, clock.Now()) unless
// seed is non-nil, in which case it's used directly — a configuration hook
// for reproducible tests.
func newLossInjector(probability float64, clock clockwork.Clock, seed *uint64) *lossInjector {
	var s uint64
	if seed != nil {
		s = *seed
	} else {
		s = uint64(os.Getpid())*uint64(os.Getpid()) ^ uint64(clock.Now().UnixNano())
	}
	return &lossInjector{
		rng:    rand.New(rand.NewPCG(s, s>>32|1)),
		probBP: int64(probability * 10000),
	}
}

// keep draws a uniform integer in [0, 10000) and reports whether the
// packet should be kept (true) or dropped (false). A draw strictly less
// than the configured basis points means "drop".
func (l *lossInjector) keep() bool {
	draw := l.rng.Int64N(10000)
	return draw >= l.probBP
}
