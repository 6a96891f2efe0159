package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_Disabled(t *testing.T) {
	l := New(false, 100)
	for i := 0; i < 50; i++ {
		assert.True(t, l.Allow())
	}
}

func TestLimiter_ZeroRateDisables(t *testing.T) {
	l := New(true, 0)
	assert.True(t, l.Allow())
}

func TestLimiter_BurstThenThrottled(t *testing.T) {
	l := New(true, 2)
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
