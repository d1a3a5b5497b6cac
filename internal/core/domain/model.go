package domain

import "time"

// OperatingMode is the user-selected top level mode. Automatic delegates to
// the charge/hold/discharge state machine, the other three force a fixed
// behavior.
type OperatingMode string

const (
	ModeForcedCharge OperatingMode = "forced_charge"
	ModeHold         OperatingMode = "hold"
	ModeSolar        OperatingMode = "solar"
	ModeAutomatic    OperatingMode = "automatic"
)

func ParseOperatingMode(s string) (OperatingMode, bool) {
	switch OperatingMode(s) {
	case ModeForcedCharge, ModeHold, ModeSolar, ModeAutomatic:
		return OperatingMode(s), true
	}
	return ModeHold, false
}

func OperatingModes() []OperatingMode {
	return []OperatingMode{ModeForcedCharge, ModeHold, ModeSolar, ModeAutomatic}
}

// FsmState is the internal state of the automatic controller.
type FsmState string

const (
	FsmHold      FsmState = "hold"
	FsmCharge    FsmState = "charge"
	FsmDischarge FsmState = "discharge"
)

func ParseFsmState(s string) (FsmState, bool) {
	switch FsmState(s) {
	case FsmHold, FsmCharge, FsmDischarge:
		return FsmState(s), true
	}
	return FsmHold, false
}

// PowerStream "power supply mode" select options as exposed by the EcoFlow
// integration.
type SupplyMode string

const (
	SupplyModeStorage SupplyMode = "Prioritize power storage"
	SupplyModeSupply  SupplyMode = "Prioritize power supply"
)

// SensorReading is a single sampled value. Available is false when the
// source entity never reported or its last report is stale.
type SensorReading struct {
	Value     float64
	Available bool
}

func Reading(value float64) SensorReading {
	return SensorReading{Value: value, Available: true}
}

// SensorSnapshot is the input of one control tick. A snapshot with any
// unavailable field is invalid and the tick is skipped.
type SensorSnapshot struct {
	GridPower  SensorReading
	SolarPower SensorReading
	BatterySoC SensorReading
	Timestamp  time.Time
}

func (s SensorSnapshot) Valid() bool {
	return s.GridPower.Available && s.SolarPower.Available && s.BatterySoC.Available
}

// MissingFields lists the unavailable readings, for degraded-mode logging.
func (s SensorSnapshot) MissingFields() []string {
	var missing []string
	if !s.GridPower.Available {
		missing = append(missing, "grid_power")
	}
	if !s.SolarPower.Available {
		missing = append(missing, "solar_power")
	}
	if !s.BatterySoC.Available {
		missing = append(missing, "battery_soc")
	}
	return missing
}

// ControlCommand is the single output artifact of one tick.
type ControlCommand struct {
	ChargeEnabled    bool
	DischargeEnabled bool
	ChargePowerWatt  float64
	FeedinPowerWatt  float64
	SupplyMode       SupplyMode
}

// RampState persists the last commanded charge and feed-in power so each
// tick ramps relative to the previous command, not the hardware's reported
// value. It survives mode changes.
type RampState struct {
	ChargeWatt float64
	FeedinWatt float64
}

// ControlState is the restart-continuity payload persisted by the store and
// rehydrated on startup.
type ControlState struct {
	FsmState   FsmState
	FsmSince   time.Time
	ChargeWatt float64
	FeedinWatt float64
}

// Decision log event kinds.
const (
	LogStateTransition   = "state_transition"
	LogPowerAdjust       = "power_adjust"
	LogModeChange        = "mode_change"
	LogEnabledChange     = "enabled_change"
	LogSensorUnavailable = "sensor_unavailable"
	LogActuatorFailed    = "actuator_write_failed"
)

// DecisionLogEntry records one control action with the sensor context it
// was taken in.
type DecisionLogEntry struct {
	Timestamp   time.Time
	Event       string
	Reason      string
	Mode        OperatingMode
	StateBefore FsmState
	StateAfter  FsmState
	GridPower   float64
	SolarPower  float64
	BatterySoC  float64
	Command     ControlCommand
}
