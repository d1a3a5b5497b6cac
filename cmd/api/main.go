package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "powerstream2mqtt/internal/adapter/actor"
	"powerstream2mqtt/internal/adapter/store"
	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/actor"
	"powerstream2mqtt/internal/core/port"
	"powerstream2mqtt/internal/server"
	"powerstream2mqtt/internal/util/actorutil"
	"powerstream2mqtt/pkg/powermeter"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// state store
	var stateStore port.StateStore
	var sqliteStore *store.SQLiteStateStore
	if cfg.Store.Path != "" {
		sqliteStore, err = store.NewSQLiteStateStore(cfg.Store)
		if err != nil {
			panic(err)
		}
		stateStore = sqliteStore
	}

	// init meter actor provider
	meterProv, err := meterActorProvider(cfg, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, mqttActorProvider(cfg, logger),
			meterProv, stateStore, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
	if sqliteStore != nil {
		sqliteStore.Close()
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => POWERSTREAM_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("POWERSTREAM_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("powerstream")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check control thresholds
	if err := cfg.Control.Validate(); err != nil {
		return nil, err
	}

	// the hardware entity topics are mandatory
	if cfg.Entities.ChargeSwitchTopic == "" || cfg.Entities.DischargeSwitchTopic == "" ||
		cfg.Entities.ChargePowerTopic == "" || cfg.Entities.FeedinPowerTopic == "" ||
		cfg.Entities.SupplyModeTopic == "" {
		return nil, errors.New("config params entities.* command topics must all be set")
	}

	// without a local meter, the sensor topics are the only reading source
	if !cfg.Meter.Enable {
		if cfg.Sensors.GridPowerTopic == "" || cfg.Sensors.SolarPowerTopic == "" {
			return nil, errors.New("config params sensors.grid_power_topic and sensors.solar_power_topic must be set when meter.enable is false")
		}
	}
	if cfg.Sensors.BatterySoCTopic == "" {
		return nil, errors.New("config param sensors.battery_soc_topic must be set")
	}
	if cfg.Meter.Enable && cfg.Meter.PollIntervalMillis < 1000 {
		return nil, errors.New("config param meter.poll_interval_millis should be >= 1000")
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func() *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, logger)
	}
}

func meterActorProvider(cfg *config.Config, logger *zap.Logger) (actor.MeterActorProvider, error) {
	if !cfg.Meter.Enable {
		return nil, nil
	}

	reader, err := powermeter.CreateModbusPowerMeterReader(cfg.Meter.Host, cfg.Meter.Port,
		uint8(cfg.Meter.UnitId), cfg.Meter.GridPowerRegister, cfg.Meter.SolarPowerRegister,
		1*time.Second, logger, nil)
	if err != nil {
		return nil, err
	}

	return func() *adactor.MeterActor {
		return adactor.NewMeterActor(cfg.Meter, reader, logger)
	}, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "powerstream")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("meter.enable", false)
	viper.SetDefault("meter.poll_interval_millis", 5000)
	viper.SetDefault("control.min_soc", 10)
	viper.SetDefault("control.deadband_w", 50)
	viper.SetDefault("control.min_dwell_s", 60)
	viper.SetDefault("control.grid_tolerance_w", 50)
	viper.SetDefault("control.max_grid_import_solar_w", 0)
	viper.SetDefault("control.max_feedin_w", 800)
	viper.SetDefault("control.max_charge_w", 1200)
	viper.SetDefault("control.min_charge_w", 200)
	viper.SetDefault("control.charge_step_w", 100)
	viper.SetDefault("control.feedin_step_w", 50)
	viper.SetDefault("control.update_interval_s", 20)
	viper.SetDefault("control.feedin_mode", "dynamic")
	viper.SetDefault("control.static_feedin_w", 400)
	viper.SetDefault("store.path", "")
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
