package actor

import (
	"fmt"
	"time"

	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/domain"
	"powerstream2mqtt/internal/core/events"
	"powerstream2mqtt/internal/core/port"
	"powerstream2mqtt/internal/core/service"
	. "powerstream2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// ControlActor owns the decision engine and runs the periodic control loop.
// Readings arrive as SensorValueUpdate pushes from the sources; each tick
// builds a snapshot from the cached readings, runs the engine and hands the
// resulting command to the sink actor.
type ControlActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	stash       *Stash
	sinkActor   *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	store       port.StateStore
	engine      *service.Engine

	readings       map[domain.SensorField]domain.SensorValueUpdate
	lastApplied    *domain.ControlCommand
	persistedTotal uint64
	lastValidSoC   *float64

	logger *zap.Logger
}

type controlTick struct {
}

func NewControlActor(config *config.Config, sinkActor *actor.PID, store port.StateStore,
	eventStream *eventstream.EventStream, logger *zap.Logger) *ControlActor {
	actorLogger := ActorLogger(domain.ACTOR_ID_CONTROL, logger)
	act := &ControlActor{
		config:      config,
		sinkActor:   sinkActor,
		stash:       &Stash{},
		store:       store,
		eventStream: eventStream,
		engine:      service.NewEngine(config.Control, actorLogger, time.Now()),
		readings:    map[domain.SensorField]domain.SensorValueUpdate{},
		logger:      actorLogger,
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CtrlStartingState{
		actor: act,
	})
	return act
}

func (state *ControlActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

func (state *ControlActor) tickInterval() time.Duration {
	return time.Duration(state.config.Control.UpdateIntervalSeconds) * time.Second
}

// staleAfter is how old a cached reading may be before the snapshot marks it
// unavailable. Two missed source updates count as an outage.
func (state *ControlActor) staleAfter() time.Duration {
	return 2 * state.tickInterval()
}

func (state *ControlActor) scheduleTick(ctx actor.Context) {
	state.scheduler.RequestOnce(state.tickInterval(), ctx.Self(), controlTick{})
}

// Starting state

type CtrlStartingState struct {
	ActorState
	actor *ControlActor
}

func (state CtrlStartingState) Name() string {
	return "starting"
}

func (state CtrlStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("control@starting started")

		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.restoreFromStore()
		state.actor.publishEvents(
			events.ModeUpdateEvent(state.actor.engine.Mode()),
			events.EnabledUpdateEvent(state.actor.engine.Enabled()),
			events.FsmStateUpdateEvent(state.actor.engine.State().State),
		)
		state.actor.publishEvents(events.ControlOptionUpdateEvents(state.actor.engine.Config())...)

		// first tick waits a full interval so the sources can report
		state.actor.scheduleTick(ctx)
		state.actor.Become(CtrlRunningState{
			actor: state.actor,
		})
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("control@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state

type CtrlRunningState struct {
	ActorState
	actor *ControlActor
}

func (state CtrlRunningState) Name() string {
	return "running"
}

func (state CtrlRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("control@running: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CONTROL,
			Healthy: true,
			State:   state.Name(),
		})
	case domain.SensorValueUpdate:
		state.actor.cacheReading(msg)
	case controlTick:
		state.actor.logger.Debug("control@running controlTick")
		state.runTick(ctx)
	case domain.ControlRequest:
		state.actor.handleControlRequest(ctx, msg)
	default:
		state.actor.logger.Debug("control@running: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state CtrlRunningState) runTick(ctx actor.Context) {
	now := time.Now()
	snap := state.actor.snapshot(now)
	command, ok := state.actor.engine.Tick(snap, now)
	state.actor.publishEvents(events.SnapshotUpdateEvents(snap)...)
	state.actor.publishEvents(events.FsmStateUpdateEvent(state.actor.engine.State().State))
	state.actor.syncDecisions()
	if !ok {
		// degraded tick: keep previous outputs untouched
		state.actor.scheduleTick(ctx)
		return
	}
	if state.actor.lastApplied != nil && *state.actor.lastApplied == command {
		// nothing changed, skip the hardware round-trip
		state.actor.persistState()
		state.actor.scheduleTick(ctx)
		return
	}
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.sinkActor, domain.ApplyControlCommandRequest{
		Command: command,
	}, 10*time.Second), func(err error) any {
		return domain.ApplyControlCommandResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
			Command: command,
		}
	})
	state.actor.BecomeStacked(CtrlAwaitApplyState{
		actor: state.actor,
	})
}

// Await apply state

type CtrlAwaitApplyState struct {
	ActorState
	actor *ControlActor
}

func (state CtrlAwaitApplyState) Name() string {
	return "awaitApply"
}

func (state CtrlAwaitApplyState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ApplyControlCommandResponse:
		if msg.HasResponseError() {
			state.actor.logger.Error("control@awaitApply: apply error", zap.Error(msg.GetResponseError()))
			state.actor.engine.RecordActuatorFailure(msg.GetResponseError(), time.Now())
			// force a re-send next tick
			state.actor.lastApplied = nil
		} else {
			applied := msg.Command
			state.actor.lastApplied = &applied
			state.actor.publishEvents(events.CommandUpdateEvents(applied)...)
		}
		state.actor.syncDecisions()
		state.actor.persistState()
		state.actor.scheduleTick(ctx)
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	default:
		state.actor.logger.Debug("control@awaitApply: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Control request handling

func (state *ControlActor) handleControlRequest(ctx actor.Context, msg domain.ControlRequest) {
	switch cmd := msg.(type) {
	case domain.ControlSetModeRequest:
		state.logger.Sugar().Debugf("control@running: cmd setMode %s", cmd.Mode)
		state.engine.SetMode(cmd.Mode, time.Now())
		state.publishEvents(
			events.ModeUpdateEvent(state.engine.Mode()),
			events.FsmStateUpdateEvent(state.engine.State().State),
		)
		state.syncDecisions()
		state.persistState()
	case domain.ControlSetEnabledRequest:
		state.logger.Sugar().Debugf("control@running: cmd setEnabled %t", cmd.Enable)
		state.engine.SetEnabled(cmd.Enable, time.Now())
		state.publishEvents(events.EnabledUpdateEvent(state.engine.Enabled()))
		state.syncDecisions()
	case domain.ControlSetOptionRequest:
		state.logger.Sugar().Debugf("control@running: cmd setOption %s=%f", cmd.Key, cmd.Value)
		err := state.engine.SetOption(cmd.Key, cmd.Value)
		if err != nil {
			state.logger.Warn("control@running: option rejected", zap.Error(err))
		}
		state.publishEvents(events.ControlOptionUpdateEvents(state.engine.Config())...)
		if ctx.Sender() != nil {
			ForRequest(cmd).Respond(ctx, domain.ControlSetOptionResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			})
		}
	case domain.ControlGetDecisionsRequest:
		ForRequest(cmd).Respond(ctx, domain.ControlGetDecisionsResponse{
			Entries: state.engine.Decisions(),
		})
	case domain.ControlGetStateRequest:
		engineState := state.engine.State()
		ForRequest(cmd).Respond(ctx, domain.ControlGetStateResponse{
			Mode:       state.engine.Mode(),
			Enabled:    state.engine.Enabled(),
			FsmState:   engineState.State,
			FsmSince:   engineState.Since,
			ChargeWatt: state.engine.ChargeWatt(),
			FeedinWatt: state.engine.FeedinWatt(),
			Snapshot:   state.snapshot(time.Now()),
		})
	}
}

// Reading cache and snapshot

func (state *ControlActor) cacheReading(update domain.SensorValueUpdate) {
	if update.Field == domain.FieldBatterySoC {
		// a real battery cannot drop to 0% between two updates; treat a
		// sudden 0% as a source glitch and keep the last known value
		if update.Value == 0 && state.lastValidSoC != nil && *state.lastValidSoC > 5 {
			state.logger.Warn("control: battery SoC dropped to 0%, keeping last known value",
				zap.Float64("last_valid", *state.lastValidSoC))
			return
		}
		soc := update.Value
		state.lastValidSoC = &soc
	}
	state.readings[update.Field] = update
}

func (state *ControlActor) snapshot(now time.Time) domain.SensorSnapshot {
	return domain.SensorSnapshot{
		GridPower:  state.reading(domain.FieldGridPower, now),
		SolarPower: state.reading(domain.FieldSolarPower, now),
		BatterySoC: state.reading(domain.FieldBatterySoC, now),
		Timestamp:  now,
	}
}

func (state *ControlActor) reading(field domain.SensorField, now time.Time) domain.SensorReading {
	update, ok := state.readings[field]
	if !ok || now.Sub(update.At) > state.staleAfter() {
		return domain.SensorReading{}
	}
	return domain.Reading(update.Value)
}

// Persistence and event publishing

func (state *ControlActor) restoreFromStore() {
	if state.store == nil {
		return
	}
	saved, found, err := state.store.LoadControlState()
	if err != nil {
		state.logger.Warn("control: could not load saved state", zap.Error(err))
		return
	}
	if found {
		state.logger.Info("control: restored state",
			zap.String("fsm_state", string(saved.FsmState)),
			zap.Float64("charge_w", saved.ChargeWatt),
			zap.Float64("feedin_w", saved.FeedinWatt))
		state.engine.Restore(saved)
	}
}

func (state *ControlActor) persistState() {
	if state.store == nil {
		return
	}
	if err := state.store.SaveControlState(state.engine.Persisted()); err != nil {
		state.logger.Warn("control: could not persist state", zap.Error(err))
	}
}

// syncDecisions archives entries logged since the last call and mirrors the
// newest one to the diagnostics sensor.
func (state *ControlActor) syncDecisions() {
	total := state.engine.DecisionsTotal()
	if total == state.persistedTotal {
		return
	}
	entries := state.engine.Decisions()
	fresh := total - state.persistedTotal
	if fresh > uint64(len(entries)) {
		fresh = uint64(len(entries))
	}
	newEntries := entries[uint64(len(entries))-fresh:]
	if state.store != nil {
		for _, entry := range newEntries {
			if err := state.store.AppendDecision(entry); err != nil {
				state.logger.Warn("control: could not archive decision", zap.Error(err))
				break
			}
		}
	}
	state.publishEvents(events.LastDecisionUpdateEvent(newEntries[len(newEntries)-1]))
	state.persistedTotal = total
}

func (state *ControlActor) publishEvents(evs ...any) {
	for _, ev := range evs {
		state.eventStream.Publish(ev)
	}
}
