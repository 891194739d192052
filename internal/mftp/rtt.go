package mftp

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// rttEstimator tracks the Jacobson/Karels-style adaptive timeout used by
// the sender's SaW wait loop. All internal values are microseconds
// represented as float64, matching the original's `long double` math.
//
// It deliberately samples retransmitted packets too — no Karn's-algorithm
// exclusion — so under heavy loss this over-estimates RTT; that's a
// documented trade-off, not a bug.
type rttEstimator struct {
	clock clockwork.Clock

	estRTT  float64
	devRTT  float64
	timeout time.Duration

	timerStart time.Time
}

// newRTTEstimator seeds EstRTT and DevRTT at 1 second, matching the
// original's initial values.
func newRTTEstimator(clock clockwork.Clock) *rttEstimator {
	return &rttEstimator{
		clock:   clock,
		estRTT:  1_000_000,
		devRTT:  1_000_000,
		timeout: time.Second,
	}
}

// startTimer captures the reference point a samp RTT is measured from.
func (r *rttEstimator) startTimer() {
	r.timerStart = r.clock.Now()
}

// elapsed reports how long the current timer has been running.
func (r *rttEstimator) elapsed() time.Duration {
	return r.clock.Now().Sub(r.timerStart)
}

// expired reports whether the current timer has exceeded the adaptive
// timeout.
func (r *rttEstimator) expired() bool {
	return r.elapsed() >= r.timeout
}

// sample folds a fresh RTT observation into EstRTT/DevRTT and recomputes
// the timeout, using the elapsed time since the last startTimer call.
func (r *rttEstimator) sample() {
	sampRTT := float64(r.elapsed().Microseconds())
	r.estRTT = 0.875*r.estRTT + 0.125*sampRTT
	dev := r.estRTT - sampRTT
	if dev < 0 {
		dev = -dev
	}
	r.devRTT = 0.75*r.devRTT + 0.25*dev
	r.timeout = time.Duration(r.estRTT+4*r.devRTT) * time.Microsecond
}

// Timeout returns the current adaptive timeout.
func (r *rttEstimator) Timeout() time.Duration { return r.timeout }

// EstRTT returns the current smoothed RTT estimate, in microseconds.
func (r *rttEstimator) EstRTT() float64 { return r.estRTT }
