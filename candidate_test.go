package cfscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_HigherSpeedIsBetter(t *testing.T) {
	assert.Greater(t, score(200, 50), score(100, 50))
}

func TestScore_LowerLatencyIsBetter(t *testing.T) {
	assert.Greater(t, score(200, 20), score(200, 50))
}

func TestScore_ZeroLatencyDoesNotDivideByZero(t *testing.T) {
	assert.NotPanics(t, func() { score(100, 0) })
}
