package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRampBounds() RampBounds {
	return RampBounds{
		StepWatt:     100,
		MinBoundWatt: 200,
		MaxBoundWatt: 1200,
		DeadbandWatt: 50,
	}
}

func TestRampUpSequence(t *testing.T) {
	require := require.New(t)
	bounds := testRampBounds()

	// from 0 toward 500: the position climbs one step per call and the
	// commanded power stays 0 until the minimum operable bound is reached
	current := 0.0
	wantNext := []float64{100, 200, 300, 400, 500}
	wantPower := []float64{0, 200, 300, 400, 500}
	for i := range wantNext {
		next, enabled := Ramp(current, 500, bounds)
		require.Equal(wantNext[i], next, "step %d", i)
		require.Equal(wantPower[i], CommandedPower(next, enabled), "step %d", i)
		current = next
	}

	// on target: deadband holds steady
	next, enabled := Ramp(current, 500, bounds)
	assert.Equal(t, 500.0, next)
	assert.True(t, enabled)
}

func TestRampDeadbandIgnoresSmallError(t *testing.T) {
	next, enabled := Ramp(400, 430, testRampBounds())
	assert.Equal(t, 400.0, next)
	assert.True(t, enabled)

	next, _ = Ramp(400, 460, testRampBounds())
	assert.Equal(t, 460.0, next)
}

func TestRampClampsToBounds(t *testing.T) {
	next, _ := Ramp(1150, 5000, testRampBounds())
	assert.Equal(t, 1200.0, next)

	next, enabled := Ramp(80, 0, testRampBounds())
	assert.Equal(t, 0.0, next)
	assert.False(t, enabled)
}

func TestRampDownThroughMinBound(t *testing.T) {
	require := require.New(t)
	bounds := testRampBounds()

	current := 300.0
	next, enabled := Ramp(current, 0, bounds)
	require.Equal(200.0, next)
	require.Equal(200.0, CommandedPower(next, enabled))

	next, enabled = Ramp(next, 0, bounds)
	require.Equal(100.0, next)
	require.Equal(0.0, CommandedPower(next, enabled))

	next, enabled = Ramp(next, 0, bounds)
	require.Equal(0.0, next)
	require.False(enabled)
}

func TestRampZeroTargetBypassesDeadband(t *testing.T) {
	// a small residual must still shut down even though the error is
	// inside the deadband
	next, enabled := Ramp(50, 0, testRampBounds())
	assert.Equal(t, 0.0, next)
	assert.False(t, enabled)
}

func TestCommandedPowerZeroWhenNotOperable(t *testing.T) {
	assert.Equal(t, 0.0, CommandedPower(150, false))
	assert.Equal(t, 150.0, CommandedPower(150, true))
}
