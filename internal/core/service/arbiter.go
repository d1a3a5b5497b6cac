package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/domain"
)

// Engine is the decision core: it arbitrates the operating modes, runs the
// automatic state machine and turns targets into ramped hardware commands.
// It is purely in-memory and single-owner; the control actor is the only
// caller, so no locking here.
type Engine struct {
	cfg    config.ControlConfig
	logger *zap.Logger

	mode    domain.OperatingMode
	enabled bool
	fsm     AutomaticState
	ramp    domain.RampState

	lastCommand  domain.ControlCommand
	hasCommanded bool
	sensorsOK    bool

	log RingLog
}

func NewEngine(cfg config.ControlConfig, logger *zap.Logger, now time.Time) *Engine {
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		mode:      domain.ModeHold,
		enabled:   true,
		fsm:       NewAutomaticState(now),
		sensorsOK: true,
	}
}

func (e *Engine) Mode() domain.OperatingMode { return e.mode }
func (e *Engine) Enabled() bool              { return e.enabled }
func (e *Engine) State() AutomaticState      { return e.fsm }
func (e *Engine) Config() config.ControlConfig {
	return e.cfg
}

// ChargeWatt and FeedinWatt report the internal ramp positions, which equal
// the commanded powers whenever those are above the minimum operable bounds.
func (e *Engine) ChargeWatt() float64 { return e.ramp.ChargeWatt }
func (e *Engine) FeedinWatt() float64 { return e.ramp.FeedinWatt }

func (e *Engine) Decisions() []domain.DecisionLogEntry {
	return e.log.Entries()
}

func (e *Engine) LastDecision() (domain.DecisionLogEntry, bool) {
	return e.log.Last()
}

// DecisionsTotal counts every decision ever logged, including ones already
// rotated out of the window.
func (e *Engine) DecisionsTotal() uint64 {
	return e.log.Total()
}

// Persisted returns the restart-continuity payload for the store.
func (e *Engine) Persisted() domain.ControlState {
	return domain.ControlState{
		FsmState:   e.fsm.State,
		FsmSince:   e.fsm.Since,
		ChargeWatt: e.ramp.ChargeWatt,
		FeedinWatt: e.ramp.FeedinWatt,
	}
}

// Restore rehydrates the controller state saved by a previous run, so a
// restart does not reset dwell timing or jump the ramps back to zero.
func (e *Engine) Restore(state domain.ControlState) {
	e.fsm = AutomaticState{State: state.FsmState, Since: state.FsmSince}
	e.ramp = domain.RampState{ChargeWatt: state.ChargeWatt, FeedinWatt: state.FeedinWatt}
}

// SetMode switches the operating mode. The automatic state machine restarts
// from hold so a later switch back to automatic begins conservatively.
func (e *Engine) SetMode(mode domain.OperatingMode, now time.Time) {
	if mode == e.mode {
		return
	}
	old := e.mode
	e.mode = mode
	e.fsm = NewAutomaticState(now)
	e.logDecision(domain.LogModeChange, fmt.Sprintf("Mode changed: %s -> %s", old, mode), now, domain.SensorSnapshot{})
}

// SetEnabled flips the master switch. Disabling does not cut power
// immediately; the next ticks ramp both outputs down to zero.
func (e *Engine) SetEnabled(enabled bool, now time.Time) {
	if enabled == e.enabled {
		return
	}
	e.enabled = enabled
	word := "disabled"
	if enabled {
		word = "enabled"
	}
	e.logDecision(domain.LogEnabledChange, fmt.Sprintf("Manager %s", word), now, domain.SensorSnapshot{})
}

// SetOption replaces one runtime-tunable threshold. The whole resulting
// config is validated; on failure the previous config stays in effect.
func (e *Engine) SetOption(key string, value float64) error {
	next, err := e.cfg.WithOption(key, value)
	if err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	e.cfg = next
	e.logger.Info("control option updated", zap.String("option", key), zap.Float64("value", value))
	return nil
}

// Tick runs one decision cycle. It returns the command to apply and false
// when the tick was skipped because a sensor reading is missing or stale;
// skipped ticks leave the previous outputs untouched.
func (e *Engine) Tick(snap domain.SensorSnapshot, now time.Time) (domain.ControlCommand, bool) {
	if !snap.Valid() {
		missing := strings.Join(snap.MissingFields(), ", ")
		e.logger.Warn("tick skipped, sensor readings unavailable", zap.String("missing", missing))
		if e.sensorsOK {
			e.sensorsOK = false
			e.logDecision(domain.LogSensorUnavailable, fmt.Sprintf("Readings unavailable: %s", missing), now, snap)
		}
		return domain.ControlCommand{}, false
	}
	if !e.sensorsOK {
		e.sensorsOK = true
		e.logger.Info("sensor readings recovered")
	}

	chargeTarget, feedinTarget := e.targets(snap, now)
	command := e.applyRamps(chargeTarget, feedinTarget)

	if !e.hasCommanded || command != e.lastCommand {
		e.logPowerAdjust(command, now, snap)
		e.lastCommand = command
		e.hasCommanded = true
	}
	return command, true
}

// RecordActuatorFailure logs a failed hardware write. The ramp state is kept
// as commanded; the next tick re-issues the same or a further-ramped value.
func (e *Engine) RecordActuatorFailure(err error, now time.Time) {
	e.logger.Error("actuator write failed", zap.Error(err))
	e.logDecision(domain.LogActuatorFailed, fmt.Sprintf("Actuator write failed: %s", err), now, domain.SensorSnapshot{})
}

// targets arbitrates the operating modes into per-tick power targets.
// Precedence: master disable, then the forced modes, then automatic.
func (e *Engine) targets(snap domain.SensorSnapshot, now time.Time) (chargeTarget, feedinTarget float64) {
	if !e.enabled {
		return 0, 0
	}

	sig := DeriveSignals(snap, e.cfg)

	switch e.mode {
	case domain.ModeForcedCharge:
		e.pinState(domain.FsmCharge, now)
		return e.cfg.MaxChargeWatt, 0
	case domain.ModeHold:
		e.pinState(domain.FsmHold, now)
		return 0, 0
	case domain.ModeSolar:
		if sig.SolarSurplus {
			e.pinState(domain.FsmCharge, now)
			return e.cfg.MaxChargeWatt, 0
		}
		e.pinState(domain.FsmHold, now)
		return 0, 0
	}

	// Automatic: advance the state machine, then derive targets from the
	// resulting state.
	next, reason := Transition(e.fsm, sig, time.Duration(e.cfg.MinDwellSeconds)*time.Second, now)
	if reason != "" {
		before := e.fsm.State
		e.fsm = next
		e.logTransition(before, next.State, reason, now, snap)
	}

	switch e.fsm.State {
	case domain.FsmCharge:
		return e.cfg.MaxChargeWatt, 0
	case domain.FsmDischarge:
		return 0, e.feedinTarget(snap)
	default:
		return 0, 0
	}
}

// feedinTarget is the discharge power goal. Dynamic mode chases the grid
// import down to the tolerance; static mode feeds a fixed power.
func (e *Engine) feedinTarget(snap domain.SensorSnapshot) float64 {
	if e.cfg.FeedinMode == config.FeedinModeStatic {
		return clamp(e.cfg.StaticFeedinWatt, 0, e.cfg.MaxFeedinWatt)
	}
	return clamp(snap.GridPower.Value-e.cfg.GridToleranceWatt, 0, e.cfg.MaxFeedinWatt)
}

func (e *Engine) applyRamps(chargeTarget, feedinTarget float64) domain.ControlCommand {
	chargeNext, chargeOperable := Ramp(e.ramp.ChargeWatt, chargeTarget, RampBounds{
		StepWatt:     e.cfg.ChargeStepWatt,
		MinBoundWatt: e.cfg.MinChargeWatt,
		MaxBoundWatt: e.cfg.MaxChargeWatt,
		DeadbandWatt: e.cfg.DeadbandWatt,
	})
	feedinNext, _ := Ramp(e.ramp.FeedinWatt, feedinTarget, RampBounds{
		StepWatt:     e.cfg.FeedinStepWatt,
		MinBoundWatt: 0,
		MaxBoundWatt: e.cfg.MaxFeedinWatt,
		DeadbandWatt: e.cfg.DeadbandWatt,
	})
	e.ramp = domain.RampState{ChargeWatt: chargeNext, FeedinWatt: feedinNext}

	chargeWatt := CommandedPower(chargeNext, chargeOperable)
	command := domain.ControlCommand{
		ChargeEnabled:    chargeWatt > 0,
		DischargeEnabled: feedinNext > 0,
		ChargePowerWatt:  chargeWatt,
		FeedinPowerWatt:  feedinNext,
		SupplyMode:       domain.SupplyModeStorage,
	}
	// The PowerStream routes battery output to the house only in supply
	// mode, so it follows the discharge relay.
	if command.DischargeEnabled {
		command.SupplyMode = domain.SupplyModeSupply
	}
	return command
}

// pinState sets the reported state for the non-automatic modes without the
// transition table or its logging.
func (e *Engine) pinState(state domain.FsmState, now time.Time) {
	if e.fsm.State != state {
		e.fsm = AutomaticState{State: state, Since: now}
	}
}

func (e *Engine) logTransition(before, after domain.FsmState, reason string, now time.Time, snap domain.SensorSnapshot) {
	entry := e.entry(domain.LogStateTransition, fmt.Sprintf("%s -> %s: %s", before, after, reason), now, snap)
	entry.StateBefore = before
	e.log.Append(entry)
	e.logger.Info("state transition",
		zap.String("from", string(before)),
		zap.String("to", string(after)),
		zap.String("reason", reason))
}

func (e *Engine) logPowerAdjust(command domain.ControlCommand, now time.Time, snap domain.SensorSnapshot) {
	reason := fmt.Sprintf("Charge %.0fW -> %.0fW, feed-in %.0fW -> %.0fW",
		e.lastCommand.ChargePowerWatt, command.ChargePowerWatt,
		e.lastCommand.FeedinPowerWatt, command.FeedinPowerWatt)
	entry := e.entry(domain.LogPowerAdjust, reason, now, snap)
	entry.Command = command
	e.log.Append(entry)
	e.logger.Info("power adjust",
		zap.Float64("charge_w", command.ChargePowerWatt),
		zap.Float64("feedin_w", command.FeedinPowerWatt),
		zap.Bool("charge_on", command.ChargeEnabled),
		zap.Bool("discharge_on", command.DischargeEnabled))
}

func (e *Engine) logDecision(event, reason string, now time.Time, snap domain.SensorSnapshot) {
	e.log.Append(e.entry(event, reason, now, snap))
	e.logger.Info(reason, zap.String("event", event))
}

func (e *Engine) entry(event, reason string, now time.Time, snap domain.SensorSnapshot) domain.DecisionLogEntry {
	return domain.DecisionLogEntry{
		Timestamp:   now,
		Event:       event,
		Reason:      reason,
		Mode:        e.mode,
		StateBefore: e.fsm.State,
		StateAfter:  e.fsm.State,
		GridPower:   snap.GridPower.Value,
		SolarPower:  snap.SolarPower.Value,
		BatterySoC:  snap.BatterySoC.Value,
		Command:     e.lastCommand,
	}
}
