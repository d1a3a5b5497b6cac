package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	FeedinModeDynamic = "dynamic"
	FeedinModeStatic  = "static"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig `mapstructure:"mqtt"`

	Meter    MeterConfig    `mapstructure:"meter"`
	Entities EntitiesConfig `mapstructure:"entities"`
	Sensors  SensorsConfig  `mapstructure:"sensors"`
	Control  ControlConfig  `mapstructure:"control"`
	Store    StoreConfig    `mapstructure:"store"`
	Port     uint           `mapstructure:"port"`
	HttpLog  bool           `mapstructure:"http_log"`
}

// MeterConfig describes an optional modbus TCP power meter used as the
// grid/solar reading source instead of MQTT sensor topics.
type MeterConfig struct {
	Enable             bool   `mapstructure:"enable"`
	Host               string `mapstructure:"host"`
	Port               uint   `mapstructure:"port"`
	UnitId             uint   `mapstructure:"unit_id"`
	GridPowerRegister  uint16 `mapstructure:"grid_power_register"`
	SolarPowerRegister uint16 `mapstructure:"solar_power_register"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

// EntitiesConfig holds the already-resolved MQTT command topics of the
// Home Assistant entities that actually drive the hardware: the two relays,
// the two power numbers and the power supply mode select.
type EntitiesConfig struct {
	ChargeSwitchTopic    string `mapstructure:"charge_switch_topic"`
	DischargeSwitchTopic string `mapstructure:"discharge_switch_topic"`
	ChargePowerTopic     string `mapstructure:"charge_power_topic"`
	FeedinPowerTopic     string `mapstructure:"feedin_power_topic"`
	SupplyModeTopic      string `mapstructure:"supply_mode_topic"`
}

// SensorsConfig holds the state topics of the live readings the control
// loop consumes.
type SensorsConfig struct {
	GridPowerTopic  string `mapstructure:"grid_power_topic"`
	SolarPowerTopic string `mapstructure:"solar_power_topic"`
	BatterySoCTopic string `mapstructure:"battery_soc_topic"`
}

type ControlConfig struct {
	MinSoC                 float64 `mapstructure:"min_soc"`
	DeadbandWatt           float64 `mapstructure:"deadband_w"`
	MinDwellSeconds        uint32  `mapstructure:"min_dwell_s"`
	GridToleranceWatt      float64 `mapstructure:"grid_tolerance_w"`
	MaxGridImportSolarWatt float64 `mapstructure:"max_grid_import_solar_w"`
	MaxFeedinWatt          float64 `mapstructure:"max_feedin_w"`
	MaxChargeWatt          float64 `mapstructure:"max_charge_w"`
	MinChargeWatt          float64 `mapstructure:"min_charge_w"`
	ChargeStepWatt         float64 `mapstructure:"charge_step_w"`
	FeedinStepWatt         float64 `mapstructure:"feedin_step_w"`
	UpdateIntervalSeconds  uint32  `mapstructure:"update_interval_s"`
	FeedinMode             string  `mapstructure:"feedin_mode"`
	StaticFeedinWatt       float64 `mapstructure:"static_feedin_w"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

// Validate checks the control thresholds. Invalid values are rejected as a
// whole so the previously applied configuration stays in effect.
func (c ControlConfig) Validate() error {
	if c.MinSoC < 0 || c.MinSoC > 100 {
		return errors.New("config param control.min_soc must be within [0, 100]")
	}
	if c.DeadbandWatt < 0 {
		return errors.New("config param control.deadband_w must be >= 0")
	}
	if c.MaxChargeWatt <= 0 {
		return errors.New("config param control.max_charge_w must be > 0")
	}
	if c.MinChargeWatt < 0 || c.MinChargeWatt > c.MaxChargeWatt {
		return errors.New("config param control.min_charge_w must be within [0, max_charge_w]")
	}
	if c.ChargeStepWatt <= 0 || c.FeedinStepWatt <= 0 {
		return errors.New("config params control.charge_step_w and control.feedin_step_w must be > 0")
	}
	if c.MaxFeedinWatt < 0 {
		return errors.New("config param control.max_feedin_w must be >= 0")
	}
	if c.StaticFeedinWatt < 0 || c.StaticFeedinWatt > c.MaxFeedinWatt {
		return errors.New("config param control.static_feedin_w must be within [0, max_feedin_w]")
	}
	if c.UpdateIntervalSeconds < 5 {
		return errors.New("config param control.update_interval_s should be >= 5s")
	}
	if c.FeedinMode != FeedinModeDynamic && c.FeedinMode != FeedinModeStatic {
		return fmt.Errorf("config param control.feedin_mode must be %q or %q", FeedinModeDynamic, FeedinModeStatic)
	}
	return nil
}

// WithOption returns a copy of the config with a single numeric threshold
// replaced. Unknown keys and values the field cannot represent leave the
// config untouched and report an error.
func (c ControlConfig) WithOption(key string, value float64) (ControlConfig, error) {
	next := c
	switch key {
	case "min_soc":
		next.MinSoC = value
	case "deadband_w":
		next.DeadbandWatt = value
	case "min_dwell_s":
		// the field is unsigned, a negative float would wrap
		if value < 0 {
			return c, errors.New("config param control.min_dwell_s must be >= 0")
		}
		next.MinDwellSeconds = uint32(value)
	case "grid_tolerance_w":
		next.GridToleranceWatt = value
	case "max_grid_import_solar_w":
		next.MaxGridImportSolarWatt = value
	case "max_feedin_w":
		next.MaxFeedinWatt = value
	case "max_charge_w":
		next.MaxChargeWatt = value
	case "min_charge_w":
		next.MinChargeWatt = value
	case "static_feedin_w":
		next.StaticFeedinWatt = value
	default:
		return c, fmt.Errorf("unknown control option %q", key)
	}
	return next, nil
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
