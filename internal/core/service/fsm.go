package service

import (
	"math"
	"time"

	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/domain"
)

// AutomaticState is the explicit state of the automatic controller: the
// current phase and when it was entered. It is owned by the engine and
// passed through the pure transition function once per tick.
type AutomaticState struct {
	State domain.FsmState
	Since time.Time
}

func NewAutomaticState(now time.Time) AutomaticState {
	return AutomaticState{State: domain.FsmHold, Since: now}
}

// Signals are the derived per-tick conditions the transition table runs on.
type Signals struct {
	SurplusWatt     float64
	SolarSurplus    bool
	HighConsumption bool
	SoCTooLow       bool
}

// DeriveSignals computes the transition conditions from a snapshot. The
// deadband is applied as hysteresis on both thresholds so readings hovering
// around a limit do not flip the controller back and forth.
func DeriveSignals(snap domain.SensorSnapshot, cfg config.ControlConfig) Signals {
	grid := snap.GridPower.Value
	return Signals{
		SurplusWatt:     snap.SolarPower.Value - math.Max(grid, 0),
		SolarSurplus:    grid <= cfg.MaxGridImportSolarWatt-cfg.DeadbandWatt,
		HighConsumption: grid >= cfg.GridToleranceWatt+cfg.DeadbandWatt,
		SoCTooLow:       snap.BatterySoC.Value <= cfg.MinSoC,
	}
}

// Transition evaluates the state table once. It returns the (possibly
// unchanged) state and a reason naming the triggering signal when a
// transition happened; the reason is empty when the state is kept.
//
// The low-SoC stop from discharge bypasses the dwell-time debounce: it is a
// safety floor, not a comfort decision.
func Transition(st AutomaticState, sig Signals, minDwell time.Duration, now time.Time) (AutomaticState, string) {
	if st.State == domain.FsmDischarge && sig.SoCTooLow {
		return AutomaticState{State: domain.FsmHold, Since: now}, "low SoC safety stop"
	}

	if now.Sub(st.Since) < minDwell {
		return st, ""
	}

	switch st.State {
	case domain.FsmHold:
		if sig.SolarSurplus {
			return AutomaticState{State: domain.FsmCharge, Since: now}, "solar surplus detected"
		}
		if sig.HighConsumption && !sig.SoCTooLow {
			return AutomaticState{State: domain.FsmDischarge, Since: now}, "high consumption detected"
		}
	case domain.FsmCharge:
		if !sig.SolarSurplus {
			return AutomaticState{State: domain.FsmHold, Since: now}, "solar surplus gone"
		}
		if sig.HighConsumption && !sig.SoCTooLow {
			return AutomaticState{State: domain.FsmDischarge, Since: now}, "high consumption detected"
		}
	case domain.FsmDischarge:
		if !sig.HighConsumption {
			return AutomaticState{State: domain.FsmHold, Since: now}, "grid import back within tolerance"
		}
		if sig.SolarSurplus {
			return AutomaticState{State: domain.FsmCharge, Since: now}, "solar surplus detected"
		}
	}
	return st, ""
}
