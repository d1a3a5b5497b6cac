package actorutil

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"powerstream2mqtt/internal/core/domain"
	"powerstream2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToControlRequest maps an incoming MQTT entity command to
// the control request it represents. Returns nil for unknown entities.
func ParsedMQTTCommandToControlRequest(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch cmd.DeviceId {
	case domain.SWITCH_ID_ENABLED:
		return domain.ControlSetEnabledRequest{
			Enable: cmd.Payload == "on",
		}, nil
	case domain.SELECT_ID_MODE:
		mode, ok := domain.ParseOperatingMode(cmd.Payload)
		if !ok {
			return nil, fmt.Errorf("unknown operating mode %q", cmd.Payload)
		}
		return domain.ControlSetModeRequest{
			Mode: mode,
		}, nil
	case domain.INPUT_NUMBER_ID_MIN_SOC,
		domain.INPUT_NUMBER_ID_MAX_CHARGE_POWER,
		domain.INPUT_NUMBER_ID_MIN_CHARGE_POWER,
		domain.INPUT_NUMBER_ID_STATIC_FEEDIN,
		domain.INPUT_NUMBER_ID_GRID_TOLERANCE:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		// entity ids double as option keys
		return domain.ControlSetOptionRequest{
			Key:   cmd.DeviceId,
			Value: value,
		}, nil
	}
	return nil, nil
}
