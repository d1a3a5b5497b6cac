package util

import (
	"powerstream2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "powerstream2mqtt",
		},
		Entities: config.EntitiesConfig{
			ChargeSwitchTopic:    "test/switch/charge/set",
			DischargeSwitchTopic: "test/switch/discharge/set",
			ChargePowerTopic:     "test/number/charge_power/set",
			FeedinPowerTopic:     "test/number/feedin_power/set",
			SupplyModeTopic:      "test/select/supply_mode/set",
		},
		Sensors: config.SensorsConfig{
			GridPowerTopic:  "test/sensor/grid_power",
			SolarPowerTopic: "test/sensor/solar_power",
			BatterySoCTopic: "test/sensor/battery_soc",
		},
		Control: config.ControlConfig{
			MinSoC:                 10,
			DeadbandWatt:           50,
			MinDwellSeconds:        60,
			GridToleranceWatt:      50,
			MaxGridImportSolarWatt: 0,
			MaxFeedinWatt:          800,
			MaxChargeWatt:          1200,
			MinChargeWatt:          200,
			ChargeStepWatt:         100,
			FeedinStepWatt:         50,
			UpdateIntervalSeconds:  20,
			FeedinMode:             config.FeedinModeDynamic,
			StaticFeedinWatt:       400,
		},
		Port: 8080,
	}
}
