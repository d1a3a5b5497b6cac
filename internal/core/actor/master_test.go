package actor

import (
	"fmt"
	"testing"
	"time"

	adactor "powerstream2mqtt/internal/adapter/actor"
	"powerstream2mqtt/internal/core/domain"
	"powerstream2mqtt/internal/mqtt"
	"powerstream2mqtt/internal/util"
	"powerstream2mqtt/pkg/powermeter"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, func() *adactor.MeterActor {
			reader, _ := powermeter.CreateTestPowerMeterReader()
			return adactor.NewMeterActor(cfg.Meter, reader, logger)
		}, nil, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		//return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	context.Stop(pid)

	as.Shutdown()
}

func TestMasterActorRoutesCommands(t *testing.T) {
	require := require.New(t)

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, logger)
		}, nil, nil, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	require.NoError(err)

	time.Sleep(2 * time.Second)

	// a select command from MQTT lands in the control actor as a mode change
	context.Send(pid, adactor.ParsedCommand{
		Command: &mqtt.ParsedMQTTCommand{
			DeviceId: domain.SELECT_ID_MODE,
			Command:  "set",
			Payload:  "forced_charge",
		},
	})

	time.Sleep(500 * time.Millisecond)

	res, err := context.RequestFuture(pid, domain.ControlGetStateRequest{}, 5*time.Second).Result()
	require.NoError(err)
	state, ok := res.(domain.ControlGetStateResponse)
	require.True(ok)
	assert.Equal(t, domain.ModeForcedCharge, state.Mode)

	context.Stop(pid)

	as.Shutdown()
}
