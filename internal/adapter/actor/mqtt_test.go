package actor

import (
	"testing"
	"time"

	"powerstream2mqtt/internal/core/domain"
	"powerstream2mqtt/internal/util"
	"powerstream2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, logger) })
	pid := context.Spawn(props)

	time.Sleep(2 * time.Second)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.NotNil(t, resp)

	context.Send(pid, domain.PublishSensorUpdateRequest{
		Retain: true,
		Event: domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: domain.SENSOR_ID_GRID_POWER,
			},
			Value: 245,
		},
	})
	context.Send(pid, domain.PublishSensorUpdateRequest{
		Retain: true,
		Event: domain.FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: domain.SENSOR_ID_SOLAR_POWER,
			},
			Value: 345.32,
		},
	})

	time.Sleep(1 * time.Second)

	context.Stop(pid)

	time.Sleep(1 * time.Second)

	as.Shutdown()
}

func TestMQTTActorAcksApplyCommand(t *testing.T) {
	require := require.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	command := domain.ControlCommand{
		DischargeEnabled: true,
		FeedinPowerWatt:  250,
		SupplyMode:       domain.SupplyModeSupply,
	}
	result, err := context.RequestFuture(pid, domain.ApplyControlCommandRequest{
		Command: command,
	}, 5*time.Second).Result()
	require.NoError(err)

	resp, ok := result.(domain.ApplyControlCommandResponse)
	require.True(ok)
	assert.False(t, resp.HasResponseError())
	assert.Equal(t, command, resp.Command)

	context.Stop(pid)

	as.Shutdown()
}
