package events

import (
	"fmt"

	. "powerstream2mqtt/internal/core/domain"

	"powerstream2mqtt/internal/config"
)

// SnapshotUpdateEvents mirrors the live readings back out as bridge sensors.
func SnapshotUpdateEvents(snap SensorSnapshot) []any {
	var events []any
	if snap.GridPower.Available {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_GRID_POWER,
			},
			Value:    snap.GridPower.Value,
			Decimals: 1,
		})
	}
	if snap.SolarPower.Available {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_SOLAR_POWER,
			},
			Value:    snap.SolarPower.Value,
			Decimals: 1,
		})
	}
	if snap.BatterySoC.Available {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_SOC,
			},
			Value:    snap.BatterySoC.Value,
			Decimals: 1,
		})
	}
	return events
}

// CommandUpdateEvents reports the powers of the last applied command.
func CommandUpdateEvents(command ControlCommand) []any {
	return []any{
		FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_CHARGE_POWER,
			},
			Value:    command.ChargePowerWatt,
			Decimals: 0,
		},
		FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_FEEDIN_POWER,
			},
			Value:    command.FeedinPowerWatt,
			Decimals: 0,
		},
	}
}

func FsmStateUpdateEvent(state FsmState) any {
	return TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_FSM_STATE,
		},
		Value: string(state),
	}
}

func LastDecisionUpdateEvent(entry DecisionLogEntry) any {
	return TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_LAST_DECISION,
		},
		Value: fmt.Sprintf("[%s] %s", entry.Event, entry.Reason),
	}
}

func ModeUpdateEvent(mode OperatingMode) any {
	return SelectSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SELECT_ID_MODE,
		},
		Value: string(mode),
	}
}

func EnabledUpdateEvent(enabled bool) any {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_ENABLED,
		},
		Value: enabled,
	}
}

// ControlOptionUpdateEvents publishes the runtime-tunable thresholds so the
// number entities reflect the active configuration.
func ControlOptionUpdateEvents(cfg config.ControlConfig) []any {
	number := func(id string, value float64) any {
		return InputNumberSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: id,
			},
			Value: value,
		}
	}
	return []any{
		number(INPUT_NUMBER_ID_MIN_SOC, cfg.MinSoC),
		number(INPUT_NUMBER_ID_MAX_CHARGE_POWER, cfg.MaxChargeWatt),
		number(INPUT_NUMBER_ID_MIN_CHARGE_POWER, cfg.MinChargeWatt),
		number(INPUT_NUMBER_ID_STATIC_FEEDIN, cfg.StaticFeedinWatt),
		number(INPUT_NUMBER_ID_GRID_TOLERANCE, cfg.GridToleranceWatt),
	}
}
