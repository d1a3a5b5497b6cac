package actor

import (
	"fmt"
	"time"

	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/domain"
	"powerstream2mqtt/internal/util/actorutil"
	"powerstream2mqtt/pkg/powermeter"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

// MeterActor polls a modbus power meter and pushes grid and solar readings
// to its parent as sensor value updates. It is an alternative reading source
// to the MQTT sensor topics.
type MeterActor struct {
	behavior  actor.Behavior
	stash     *actorutil.Stash
	meter     powermeter.PowerMeterReader
	interval  time.Duration
	scheduler *scheduler.TimerScheduler
	logger    *zap.Logger
}

type meterPoll struct {
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

type meterPollResult struct {
	flow *powermeter.PowerFlow
	err  error
}

func NewMeterActor(cfg config.MeterConfig, meter powermeter.PowerMeterReader, zlogger *zap.Logger) *MeterActor {
	interval := time.Duration(cfg.PollIntervalMillis) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Second
	}
	act := &MeterActor{
		meter:    meter,
		interval: interval,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_METER, zlogger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MeterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MeterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("meter@starting started")
		if err := state.meter.Open(); err != nil {
			panic(err)
		}
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.behavior.Become(state.DefaultReceive)
		ctx.Send(ctx.Self(), meterPoll{})
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.meter.Close()
	default:
		state.logger.Debug("meter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MeterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("meter@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_METER,
			Healthy: true,
			State:   "idle",
		})
	case meterPoll:
		state.logger.Debug("meter@default: poll")
		self := ctx.Self()
		actorutil.NewBackgroundTaskNoError(ctx, func() *backgroundTaskResult {
			flow, err := state.meter.GetPowerFlow()
			if err != nil {
				logger.Error(err)
			}
			return &backgroundTaskResult{
				message: meterPollResult{flow: flow, err: err},
				replyTo: self,
			}
		}).WithTimeout(2 * time.Second).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: meterPollResult{err: err},
				replyTo: self,
			}
		}).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingMeter)
	case *actor.Stopping:
		state.meter.Close()
	default:
		state.logger.Debug("meter@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MeterActor) WaitingMeter(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.behavior.UnbecomeStacked()
		result, ok := msg.message.(meterPollResult)
		if ok {
			state.handlePollResult(ctx, result)
		}
		// schedule next poll regardless of the result; a flaky meter
		// shows up as stale readings, not a dead actor
		state.scheduler.RequestOnce(state.interval, ctx.Self(), meterPoll{})
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.meter.Close()
	default:
		state.logger.Debug("meter@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MeterActor) handlePollResult(ctx actor.Context, result meterPollResult) {
	if result.err != nil || result.flow == nil {
		state.logger.Warn("meter@waiting: poll failed", zap.Error(result.err))
		return
	}
	now := time.Now()
	ctx.Send(ctx.Parent(), domain.SensorValueUpdate{
		Field: domain.FieldGridPower,
		Value: result.flow.GridPowerWatt,
		At:    now,
	})
	ctx.Send(ctx.Parent(), domain.SensorValueUpdate{
		Field: domain.FieldSolarPower,
		Value: result.flow.SolarPowerWatt,
		At:    now,
	})
}
