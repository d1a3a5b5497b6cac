package powermeter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestReaderReturnsConfiguredFlow(t *testing.T) {
	require := require.New(t)

	reader, err := CreateTestPowerMeterReader()
	require.NoError(err)
	require.NoError(reader.Open())
	defer reader.Close()

	flow, err := reader.GetPowerFlow()
	require.NoError(err)
	assert.Equal(t, 320.0, flow.GridPowerWatt)
	assert.Equal(t, 150.0, flow.SolarPowerWatt)
}

func TestTestReaderPropagatesError(t *testing.T) {
	reader := &TestPowerMeterReader{Err: errors.New("read failed")}

	_, err := reader.GetPowerFlow()
	require.Error(t, err)
}
