package actor

import (
	"errors"
	"fmt"
	"time"

	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/domain"
	"powerstream2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor publishes the Home Assistant discovery config for the
// bridge and the energy manager entities, then goes quiet.
type HADiscoveryActor struct {
	config           *config.Config
	behavior         actor.Behavior
	stash            *actorutil.Stash
	mqttActor        *actor.PID
	mqttActorHealthy bool

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check MQTT actor healthy before publishing
		state.mqttActorHealthy = false
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if msg.Id == domain.ACTOR_ID_MQTT && msg.Healthy {
			state.mqttActorHealthy = true
		}
		if !state.mqttActorHealthy {
			panic(errors.New("MQTT Actor is not healthy"))
		}
		state.publishDiscovery(ctx)
		state.behavior.Become(state.Done)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

func (state *HADiscoveryActor) publishDiscovery(ctx actor.Context) {
	bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)

	// the full device block goes out once, the rest reference it by id
	var sensors []domain.GenericSensor
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)
	sensors = append(sensors, domain.ManagerSensors(domain.IdDevice(bridgeDevice))...)

	ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors:      sensors,
		Switches:     domain.ManagerSwitches(domain.IdDevice(bridgeDevice)),
		InputNumbers: domain.ManagerInputNumbers(domain.IdDevice(bridgeDevice)),
		Selects:      domain.ManagerSelects(domain.IdDevice(bridgeDevice)),
	})
}
