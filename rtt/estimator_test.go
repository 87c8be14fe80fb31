package rtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitialValues(t *testing.T) {
	e := New()
	assert.Equal(t, time.Second, e.Estimated)
	assert.Equal(t, time.Duration(0), e.Deviation)
	assert.Equal(t, time.Second, e.Timeout)
}

func TestSampleMovesEstimateTowardSample(t *testing.T) {
	e := New()
	e.Sample(2 * time.Second)
	// estimated = 0.875*1s + 0.125*2s = 1.125s
	assert.InDelta(t, 1125*time.Millisecond, e.Estimated, float64(time.Millisecond))
	assert.Greater(t, e.Deviation, time.Duration(0))
	assert.Equal(t, e.Estimated+time.Duration(4*float64(e.Deviation)), e.Timeout)
}

func TestSampleWithNoJitterShrinksTimeoutTowardEstimate(t *testing.T) {
	e := New()
	for i := 0; i < 50; i++ {
		e.Sample(200 * time.Millisecond)
	}
	assert.InDelta(t, 200*time.Millisecond, e.Estimated, float64(2*time.Millisecond))
	assert.InDelta(t, 0, e.Deviation, float64(2*time.Millisecond))
}
