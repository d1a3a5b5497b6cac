package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/domain"
)

func testControlConfig() config.ControlConfig {
	return config.ControlConfig{
		MinSoC:                 10,
		DeadbandWatt:           50,
		MinDwellSeconds:        60,
		GridToleranceWatt:      50,
		MaxGridImportSolarWatt: 0,
		MaxFeedinWatt:          800,
		MaxChargeWatt:          1200,
		MinChargeWatt:          200,
		ChargeStepWatt:         100,
		FeedinStepWatt:         50,
		UpdateIntervalSeconds:  20,
		FeedinMode:             config.FeedinModeDynamic,
		StaticFeedinWatt:       400,
	}
}

func snap(grid, solar, soc float64) domain.SensorSnapshot {
	return domain.SensorSnapshot{
		GridPower:  domain.Reading(grid),
		SolarPower: domain.Reading(solar),
		BatterySoC: domain.Reading(soc),
	}
}

func TestDeriveSignals(t *testing.T) {
	cfg := testControlConfig()

	tests := []struct {
		name string
		snap domain.SensorSnapshot
		want Signals
	}{
		{
			name: "exporting with solar",
			snap: snap(-300, 800, 50),
			want: Signals{SurplusWatt: 800, SolarSurplus: true, HighConsumption: false, SoCTooLow: false},
		},
		{
			name: "importing above tolerance plus deadband",
			snap: snap(300, 0, 50),
			want: Signals{SurplusWatt: -300, SolarSurplus: false, HighConsumption: true, SoCTooLow: false},
		},
		{
			name: "grid exactly at surplus threshold",
			snap: snap(-50, 400, 50),
			want: Signals{SurplusWatt: 400, SolarSurplus: true, HighConsumption: false, SoCTooLow: false},
		},
		{
			name: "grid inside hysteresis band",
			snap: snap(60, 200, 50),
			want: Signals{SurplusWatt: 140, SolarSurplus: false, HighConsumption: false, SoCTooLow: false},
		},
		{
			name: "soc at minimum counts as too low",
			snap: snap(300, 0, 10),
			want: Signals{SurplusWatt: -300, SolarSurplus: false, HighConsumption: true, SoCTooLow: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveSignals(tt.snap, cfg))
		})
	}
}

func TestTransitionTable(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dwell := 60 * time.Second
	settled := base.Add(2 * time.Minute)

	tests := []struct {
		name string
		from domain.FsmState
		sig  Signals
		want domain.FsmState
	}{
		{"hold to charge on surplus", domain.FsmHold, Signals{SolarSurplus: true}, domain.FsmCharge},
		{"hold to discharge on high consumption", domain.FsmHold, Signals{HighConsumption: true}, domain.FsmDischarge},
		{"hold stays without signal", domain.FsmHold, Signals{}, domain.FsmHold},
		{"hold blocked by low soc", domain.FsmHold, Signals{HighConsumption: true, SoCTooLow: true}, domain.FsmHold},
		{"charge back to hold when surplus gone", domain.FsmCharge, Signals{}, domain.FsmHold},
		{"charge stays on surplus", domain.FsmCharge, Signals{SolarSurplus: true}, domain.FsmCharge},
		{"discharge to hold within tolerance", domain.FsmDischarge, Signals{}, domain.FsmHold},
		{"discharge stays on high consumption", domain.FsmDischarge, Signals{HighConsumption: true}, domain.FsmDischarge},
		// the tolerance exit wins over the surplus entry once import is back
		// within tolerance
		{"discharge to hold on surplus alone", domain.FsmDischarge, Signals{SolarSurplus: true}, domain.FsmHold},
		{"discharge to charge while consumption stays high", domain.FsmDischarge, Signals{HighConsumption: true, SolarSurplus: true}, domain.FsmCharge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := AutomaticState{State: tt.from, Since: base}
			next, reason := Transition(st, tt.sig, dwell, settled)
			assert.Equal(t, tt.want, next.State)
			if tt.want != tt.from {
				assert.NotEmpty(t, reason)
				assert.Equal(t, settled, next.Since)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

func TestTransitionDwellDebounce(t *testing.T) {
	require := require.New(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	dwell := 60 * time.Second
	st := AutomaticState{State: domain.FsmHold, Since: base}
	sig := Signals{SolarSurplus: true}

	// inside the dwell window the state is kept even with a strong signal
	next, reason := Transition(st, sig, dwell, base.Add(30*time.Second))
	require.Equal(domain.FsmHold, next.State)
	require.Empty(reason)

	// once the dwell time elapses the same signal transitions
	next, reason = Transition(st, sig, dwell, base.Add(dwell))
	require.Equal(domain.FsmCharge, next.State)
	require.NotEmpty(reason)
}

func TestTransitionLowSoCBypassesDwell(t *testing.T) {
	require := require.New(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st := AutomaticState{State: domain.FsmDischarge, Since: base}

	// just entered discharge, dwell not elapsed, but SoC hit the floor
	next, reason := Transition(st, Signals{HighConsumption: true, SoCTooLow: true}, 60*time.Second, base.Add(time.Second))
	require.Equal(domain.FsmHold, next.State)
	require.Equal("low SoC safety stop", reason)
}
