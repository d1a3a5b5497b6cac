package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/domain"
)

func testEngine(t *testing.T) (*Engine, time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewEngine(testControlConfig(), zap.NewNop(), now), now
}

func TestEngineDefaultsToHold(t *testing.T) {
	e, now := testEngine(t)

	assert.Equal(t, domain.ModeHold, e.Mode())
	assert.True(t, e.Enabled())

	command, ok := e.Tick(snap(100, 0, 50), now)
	require.True(t, ok)
	assert.Equal(t, domain.ControlCommand{SupplyMode: domain.SupplyModeStorage}, command)
}

func TestEngineForcedChargeRampsToMax(t *testing.T) {
	require := require.New(t)
	e, now := testEngine(t)

	e.SetMode(domain.ModeForcedCharge, now)

	// step 100, min operable 200: first tick climbs to 100 internally but
	// commands the charger off
	command, ok := e.Tick(snap(100, 0, 50), now)
	require.True(ok)
	require.False(command.ChargeEnabled)
	require.Equal(0.0, command.ChargePowerWatt)
	require.Equal(100.0, e.ChargeWatt())

	want := []float64{200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100, 1200}
	for i, w := range want {
		now = now.Add(20 * time.Second)
		command, ok = e.Tick(snap(100, 0, 50), now)
		require.True(ok)
		require.Equal(w, command.ChargePowerWatt, "tick %d", i)
		require.True(command.ChargeEnabled)
		require.False(command.DischargeEnabled)
		require.Equal(domain.SupplyModeStorage, command.SupplyMode)
	}

	// at the ceiling the command is stable
	now = now.Add(20 * time.Second)
	command, _ = e.Tick(snap(100, 0, 50), now)
	require.Equal(1200.0, command.ChargePowerWatt)
	assert.Equal(t, domain.FsmCharge, e.State().State)
}

func TestEngineDisableRampsDown(t *testing.T) {
	require := require.New(t)
	e, now := testEngine(t)

	e.SetMode(domain.ModeForcedCharge, now)
	for i := 0; i < 20; i++ {
		now = now.Add(20 * time.Second)
		e.Tick(snap(100, 0, 50), now)
	}
	require.Equal(1200.0, e.ChargeWatt())

	e.SetEnabled(false, now)

	want := []float64{1100, 1000, 900, 800, 700, 600, 500, 400, 300, 200}
	for i, w := range want {
		now = now.Add(20 * time.Second)
		command, ok := e.Tick(snap(100, 0, 50), now)
		require.True(ok)
		require.Equal(w, command.ChargePowerWatt, "tick %d", i)
	}

	// below the minimum operable power the charger is commanded off while
	// the ramp finishes its descent
	now = now.Add(20 * time.Second)
	command, _ := e.Tick(snap(100, 0, 50), now)
	require.False(command.ChargeEnabled)
	require.Equal(0.0, command.ChargePowerWatt)
	require.Equal(100.0, e.ChargeWatt())

	now = now.Add(20 * time.Second)
	e.Tick(snap(100, 0, 50), now)
	require.Equal(0.0, e.ChargeWatt())
}

func TestEngineAutomaticDynamicDischarge(t *testing.T) {
	require := require.New(t)
	e, now := testEngine(t)

	e.SetMode(domain.ModeAutomatic, now)

	// dwell not elapsed yet: stays in hold
	now = now.Add(20 * time.Second)
	command, ok := e.Tick(snap(300, 0, 50), now)
	require.True(ok)
	require.Equal(domain.FsmHold, e.State().State)
	require.Equal(0.0, command.FeedinPowerWatt)

	// after the dwell window the sustained import flips to discharge and
	// the feed-in ramps toward grid minus tolerance (250W)
	now = now.Add(60 * time.Second)
	command, ok = e.Tick(snap(300, 0, 50), now)
	require.True(ok)
	require.Equal(domain.FsmDischarge, e.State().State)
	require.Equal(50.0, command.FeedinPowerWatt)
	require.True(command.DischargeEnabled)
	require.Equal(domain.SupplyModeSupply, command.SupplyMode)
	require.Equal(0.0, command.ChargePowerWatt)

	want := []float64{100, 150, 200}
	for i, w := range want {
		now = now.Add(20 * time.Second)
		command, _ = e.Tick(snap(300, 0, 50), now)
		require.Equal(w, command.FeedinPowerWatt, "tick %d", i)
	}

	// a state transition and power adjusts were logged
	entries := e.Decisions()
	require.NotEmpty(entries)
	var sawTransition bool
	for _, entry := range entries {
		if entry.Event == domain.LogStateTransition {
			sawTransition = true
			require.Equal(domain.FsmHold, entry.StateBefore)
			require.Equal(domain.FsmDischarge, entry.StateAfter)
		}
	}
	require.True(sawTransition)
}

func TestEngineLowSoCStopsDischargeImmediately(t *testing.T) {
	require := require.New(t)
	e, now := testEngine(t)

	e.SetMode(domain.ModeAutomatic, now)
	now = now.Add(90 * time.Second)
	e.Tick(snap(300, 0, 20), now)
	require.Equal(domain.FsmDischarge, e.State().State)

	// SoC hits the floor right after entering discharge: the safety stop
	// does not wait for the dwell window
	now = now.Add(20 * time.Second)
	command, ok := e.Tick(snap(300, 0, 10), now)
	require.True(ok)
	require.Equal(domain.FsmHold, e.State().State)
	require.Equal(0.0, command.FeedinPowerWatt)
	require.False(command.DischargeEnabled)
	require.Equal(domain.SupplyModeStorage, command.SupplyMode)
}

func TestEngineStaticFeedin(t *testing.T) {
	require := require.New(t)
	e, now := testEngine(t)

	require.NoError(e.SetOption("static_feedin_w", 400))
	cfg := e.Config()
	cfg.FeedinMode = config.FeedinModeStatic
	e.cfg = cfg

	e.SetMode(domain.ModeAutomatic, now)

	// static mode discharges on sustained import regardless of the error
	// magnitude; target is the fixed feed-in power
	now = now.Add(90 * time.Second)
	command, ok := e.Tick(snap(200, 0, 50), now)
	require.True(ok)
	require.Equal(domain.FsmDischarge, e.State().State)
	require.Equal(50.0, command.FeedinPowerWatt)

	// settles one deadband short of the 400W target, then holds
	for i := 0; i < 10; i++ {
		now = now.Add(20 * time.Second)
		command, _ = e.Tick(snap(200, 0, 50), now)
	}
	require.Equal(350.0, command.FeedinPowerWatt)
}

func TestEngineSkipsTickOnMissingSensor(t *testing.T) {
	require := require.New(t)
	e, now := testEngine(t)

	degraded := snap(100, 0, 50)
	degraded.BatterySoC = domain.SensorReading{}

	_, ok := e.Tick(degraded, now)
	require.False(ok)

	// repeated degraded ticks log the outage once
	for i := 0; i < 5; i++ {
		now = now.Add(20 * time.Second)
		_, ok = e.Tick(degraded, now)
		require.False(ok)
	}
	var outages int
	for _, entry := range e.Decisions() {
		if entry.Event == domain.LogSensorUnavailable {
			outages++
		}
	}
	require.Equal(1, outages)

	// recovery resumes ticking
	now = now.Add(20 * time.Second)
	_, ok = e.Tick(snap(100, 0, 50), now)
	require.True(ok)
}

func TestEngineModeChangeResetsAutomaticState(t *testing.T) {
	require := require.New(t)
	e, now := testEngine(t)

	e.SetMode(domain.ModeAutomatic, now)
	now = now.Add(90 * time.Second)
	e.Tick(snap(300, 0, 50), now)
	require.Equal(domain.FsmDischarge, e.State().State)

	e.SetMode(domain.ModeHold, now)
	require.Equal(domain.FsmHold, e.State().State)

	last, ok := e.LastDecision()
	require.True(ok)
	require.Equal(domain.LogModeChange, last.Event)
}

func TestEngineSetOptionValidation(t *testing.T) {
	require := require.New(t)
	e, _ := testEngine(t)

	err := e.SetOption("min_soc", 150)
	require.Error(err)
	require.Equal(10.0, e.Config().MinSoC)

	require.NoError(e.SetOption("min_soc", 25))
	require.Equal(25.0, e.Config().MinSoC)

	err = e.SetOption("does_not_exist", 1)
	require.Error(err)
}

func TestEngineRestoreRoundTrip(t *testing.T) {
	require := require.New(t)
	e, now := testEngine(t)

	e.SetMode(domain.ModeForcedCharge, now)
	for i := 0; i < 5; i++ {
		now = now.Add(20 * time.Second)
		e.Tick(snap(100, 0, 50), now)
	}
	saved := e.Persisted()
	require.Equal(500.0, saved.ChargeWatt)

	restored := NewEngine(testControlConfig(), zap.NewNop(), now)
	restored.Restore(saved)
	require.Equal(saved.ChargeWatt, restored.ChargeWatt())
	require.Equal(saved.FsmState, restored.State().State)
	require.Equal(saved.FsmSince, restored.State().Since)
}

func TestEngineActuatorFailureLogged(t *testing.T) {
	e, now := testEngine(t)

	e.RecordActuatorFailure(errors.New("mqtt publish timeout"), now)

	last, ok := e.LastDecision()
	require.True(t, ok)
	assert.Equal(t, domain.LogActuatorFailed, last.Event)
	assert.Contains(t, last.Reason, "mqtt publish timeout")
}
