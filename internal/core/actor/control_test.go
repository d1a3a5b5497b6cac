package actor

import (
	"errors"
	"testing"
	"time"

	"powerstream2mqtt/internal/core/domain"
	"powerstream2mqtt/internal/util"
	"powerstream2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testCommandSink stands in for the MQTT actor: it records every apply
// request and acknowledges it.
type testCommandSink struct {
	applies int
	last    domain.ControlCommand
}

type sinkProbeRequest struct {
}

type sinkProbeResponse struct {
	Applies int
	Last    domain.ControlCommand
}

func (sink *testCommandSink) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ApplyControlCommandRequest:
		sink.applies++
		sink.last = msg.Command
		ctx.Respond(domain.ApplyControlCommandResponse{
			Command: msg.Command,
		})
	case sinkProbeRequest:
		ctx.Respond(sinkProbeResponse{
			Applies: sink.applies,
			Last:    sink.last,
		})
	}
}

func TestControlActorTickAndModeFlow(t *testing.T) {
	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Control.UpdateIntervalSeconds = 5
	cfg.Control.MinDwellSeconds = 1

	sink := &testCommandSink{}
	sinkPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return sink
	}))

	controlProps := actor.PropsFromProducer(func() actor.Actor {
		return NewControlActor(&cfg, sinkPID, nil, &eventstream.EventStream{}, logger)
	})
	controlPID := context.Spawn(controlProps)

	time.Sleep(200 * time.Millisecond)

	hcr, err := healthCheck(context, controlPID)
	require.NoError(err)
	assert.True(t, hcr.Healthy, "actor should be healthy")
	assert.Equal(t, "running", hcr.State)

	// feed readings so the first tick has a full snapshot
	now := time.Now()
	context.Send(controlPID, domain.SensorValueUpdate{Field: domain.FieldGridPower, Value: 320, At: now})
	context.Send(controlPID, domain.SensorValueUpdate{Field: domain.FieldSolarPower, Value: 150, At: now})
	context.Send(controlPID, domain.SensorValueUpdate{Field: domain.FieldBatterySoC, Value: 60, At: now})

	// first tick fires one interval after start
	time.Sleep(6 * time.Second)

	probe, err := probeSink(context, sinkPID)
	require.NoError(err)
	assert.GreaterOrEqual(t, probe.Applies, 1, "first tick should apply a command")
	assert.False(t, probe.Last.ChargeEnabled)
	assert.False(t, probe.Last.DischargeEnabled)

	state, err := getControlState(context, controlPID)
	require.NoError(err)
	assert.Equal(t, domain.ModeHold, state.Mode)
	assert.True(t, state.Enabled)
	assert.Equal(t, domain.FsmHold, state.FsmState)
	assert.True(t, state.Snapshot.Valid())

	// forced charge ramps the charge power up from the next tick on
	context.Send(controlPID, domain.ControlSetModeRequest{Mode: domain.ModeForcedCharge})
	time.Sleep(200 * time.Millisecond)

	state, err = getControlState(context, controlPID)
	require.NoError(err)
	assert.Equal(t, domain.ModeForcedCharge, state.Mode)

	time.Sleep(6 * time.Second)

	state, err = getControlState(context, controlPID)
	require.NoError(err)
	assert.Equal(t, domain.FsmCharge, state.FsmState)
	assert.Greater(t, state.ChargeWatt, 0.0, "charge ramp should have started")

	decisions, err := getDecisions(context, controlPID)
	require.NoError(err)
	assert.NotEmpty(t, decisions)
}

func TestControlActorRejectsUnknownOption(t *testing.T) {
	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Control.UpdateIntervalSeconds = 5

	sinkPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return &testCommandSink{}
	}))
	controlPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewControlActor(&cfg, sinkPID, nil, &eventstream.EventStream{}, logger)
	}))

	time.Sleep(200 * time.Millisecond)

	resp, err := context.RequestFuture(controlPID, domain.ControlSetOptionRequest{
		Key:   "bogus",
		Value: 1,
	}, 2*time.Second).Result()
	require.NoError(err)
	optResp, ok := resp.(domain.ControlSetOptionResponse)
	require.True(ok)
	assert.True(t, optResp.HasResponseError())

	resp, err = context.RequestFuture(controlPID, domain.ControlSetOptionRequest{
		Key:   domain.INPUT_NUMBER_ID_MIN_SOC,
		Value: 25,
	}, 2*time.Second).Result()
	require.NoError(err)
	optResp, ok = resp.(domain.ControlSetOptionResponse)
	require.True(ok)
	assert.False(t, optResp.HasResponseError())
}

func healthCheck(ctx *actor.RootContext, pid *actor.PID) (*domain.ActorHealthResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	hcr, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &hcr, nil
}

func probeSink(ctx *actor.RootContext, pid *actor.PID) (*sinkProbeResponse, error) {
	resp, err := ctx.RequestFuture(pid, sinkProbeRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	probe, ok := resp.(sinkProbeResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &probe, nil
}

func getControlState(ctx *actor.RootContext, pid *actor.PID) (*domain.ControlGetStateResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ControlGetStateRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	state, ok := resp.(domain.ControlGetStateResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &state, nil
}

func getDecisions(ctx *actor.RootContext, pid *actor.PID) ([]domain.DecisionLogEntry, error) {
	resp, err := ctx.RequestFuture(pid, domain.ControlGetDecisionsRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	decisions, ok := resp.(domain.ControlGetDecisionsResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return decisions.Entries, nil
}
