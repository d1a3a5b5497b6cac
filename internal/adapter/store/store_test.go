package store

import (
	"path/filepath"
	"testing"
	"time"

	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SQLiteStateStore {
	t.Helper()
	s, err := NewSQLiteStateStore(config.StoreConfig{
		Path: filepath.Join(t.TempDir(), "state.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func TestControlStateRoundTrip(t *testing.T) {
	require := require.New(t)

	s := testStore(t)

	_, found, err := s.LoadControlState()
	require.NoError(err)
	require.False(found, "fresh store has no saved state")

	since := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	saved := domain.ControlState{
		FsmState:   domain.FsmDischarge,
		FsmSince:   since,
		ChargeWatt: 0,
		FeedinWatt: 350,
	}
	require.NoError(s.SaveControlState(saved))

	loaded, found, err := s.LoadControlState()
	require.NoError(err)
	require.True(found)
	assert.Equal(t, domain.FsmDischarge, loaded.FsmState)
	assert.Equal(t, 350.0, loaded.FeedinWatt)
	assert.True(t, since.Equal(loaded.FsmSince))

	// saving again overwrites the single row
	saved.FsmState = domain.FsmHold
	saved.FeedinWatt = 0
	require.NoError(s.SaveControlState(saved))

	loaded, found, err = s.LoadControlState()
	require.NoError(err)
	require.True(found)
	assert.Equal(t, domain.FsmHold, loaded.FsmState)
	assert.Equal(t, 0.0, loaded.FeedinWatt)
}

func TestDecisionArchive(t *testing.T) {
	require := require.New(t)

	s := testStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(s.AppendDecision(domain.DecisionLogEntry{
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			Event:       domain.LogStateTransition,
			Reason:      "high consumption detected",
			Mode:        domain.ModeAutomatic,
			StateBefore: domain.FsmHold,
			StateAfter:  domain.FsmDischarge,
			GridPower:   300 + float64(i),
			Command: domain.ControlCommand{
				DischargeEnabled: true,
				FeedinPowerWatt:  250,
				SupplyMode:       domain.SupplyModeSupply,
			},
		}))
	}

	entries, err := s.RecentDecisions(3)
	require.NoError(err)
	require.Len(entries, 3)

	// newest three, oldest first
	assert.Equal(t, 302.0, entries[0].GridPower)
	assert.Equal(t, 304.0, entries[2].GridPower)
	assert.Equal(t, domain.ModeAutomatic, entries[0].Mode)
	assert.Equal(t, domain.FsmDischarge, entries[0].StateAfter)
	assert.True(t, entries[0].Command.DischargeEnabled)
	assert.Equal(t, domain.SupplyModeSupply, entries[0].Command.SupplyMode)
}
