// Package rtt implements the Jacobson/Karn-style retransmission-timeout
// estimator used by the LFTP sender. It takes no Karn correction: every
// popped segment's RTT sample updates the estimate, even after a
// retransmission.
package rtt

import "time"

const (
	alpha = 0.125 // weight applied to the new RTT sample
	beta  = 0.25  // weight applied to the new deviation sample
	gamma = 4.0   // deviation multiplier added to the timeout interval
)

// Estimator holds the running EstimatedRTT/DeviationRTT/TimeoutInterval
// triple, initialized to estimated 1s, deviation 0, timeout 1s.
type Estimator struct {
	Estimated time.Duration
	Deviation time.Duration
	Timeout   time.Duration
}

// New returns a freshly initialized Estimator using the default of 1s for
// both EstimatedRTT and TimeoutInterval.
func New() *Estimator {
	return NewWithInitial(time.Second)
}

// NewWithInitial returns a freshly initialized Estimator seeded with the
// given initial retransmission timeout, used both as EstimatedRTT and
// TimeoutInterval until the first sample arrives.
func NewWithInitial(initial time.Duration) *Estimator {
	return &Estimator{
		Estimated: initial,
		Timeout:   initial,
	}
}

// Sample folds a single RTT sample (the elapsed time between sending a
// segment and receiving the ACK that covers it) into the estimator. The
// deviation term is computed against the just-updated EstimatedRTT, not the
// pre-update value, matching the reference's evaluation order.
func (e *Estimator) Sample(sample time.Duration) {
	e.Estimated = time.Duration((1-alpha)*float64(e.Estimated) + alpha*float64(sample))

	devSample := sample - e.Estimated
	if devSample < 0 {
		devSample = -devSample
	}
	e.Deviation = time.Duration((1-beta)*float64(e.Deviation) + beta*float64(devSample))
	e.Timeout = e.Estimated + time.Duration(gamma*float64(e.Deviation))
}
