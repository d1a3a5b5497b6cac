package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE           = "bridge"
	SENSOR_ID_FSM_STATE              = "fsm_state"
	SENSOR_ID_GRID_POWER             = "grid_power"
	SENSOR_ID_SOLAR_POWER            = "solar_power"
	SENSOR_ID_BATTERY_SOC            = "battery_soc"
	SENSOR_ID_CHARGE_POWER           = "charge_power"
	SENSOR_ID_FEEDIN_POWER           = "feedin_power"
	SENSOR_ID_LAST_DECISION          = "last_decision"
	SWITCH_ID_ENABLED                = "enabled"
	SELECT_ID_MODE                   = "mode"
	INPUT_NUMBER_ID_MIN_SOC          = "min_soc"
	INPUT_NUMBER_ID_MAX_CHARGE_POWER = "max_charge_w"
	INPUT_NUMBER_ID_MIN_CHARGE_POWER = "min_charge_w"
	INPUT_NUMBER_ID_STATIC_FEEDIN    = "static_feedin_w"
	INPUT_NUMBER_ID_GRID_TOLERANCE   = "grid_tolerance_w"

	STATE_CLASS_MEASUREMENT  = "measurement"
	DEVICE_CLASS_BATTERY     = "battery"
	DEVICE_CLASS_POWER       = "power"
	ENTITY_CLASS_DIAGNOSTIC  = "diagnostic"
	ENTITY_CLASS_CONFIG      = "config"
	SENSOR_TYPE_SENSOR       = "sensor"
	SENSOR_TYPE_BINARY       = "binary_sensor"
	INPUT_NUMBER_MODE_BOX    = "box"
	INPUT_NUMBER_MODE_SLIDER = "slider"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("psm_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "powerstream2mqtt",
		Model:        "PowerStream Manager",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("PowerStream Manager %s", md5HashShort(baseTopic)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(device Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:      device,
			Id:          SENSOR_ID_BRIDGE_STATE,
			SensorType:  SENSOR_TYPE_BINARY,
			Name:        "Bridge state",
			DeviceClass: "connectivity",
			UniqueId:    uniqueId(device.Id, SENSOR_ID_BRIDGE_STATE),
		},
	}
}

// ManagerSensors are the integration's own state sensors: the automatic
// controller state, the live readings and the last commanded powers.
func ManagerSensors(device Device) []GenericSensor {
	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_FSM_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Controller state",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_FSM_STATE),
		Icon:       "mdi:state-machine",
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_GRID_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Grid power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_GRID_POWER),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_SOLAR_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Solar power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_SOLAR_POWER),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_BATTERY_SOC),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_CHARGE_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Commanded charge power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_CHARGE_POWER),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_FEEDIN_POWER,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Commanded feed-in power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "W",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_FEEDIN_POWER),
	})
	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_LAST_DECISION,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Last decision",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, SENSOR_ID_LAST_DECISION),
		Icon:           "mdi:notebook-outline",
	})

	return sensors
}

func ManagerSwitches(device Device) []GenericSwitch {
	return []GenericSwitch{
		{
			Device:   device,
			Id:       SWITCH_ID_ENABLED,
			Name:     "Enabled",
			UniqueId: uniqueId(device.Id, SWITCH_ID_ENABLED),
			Icon:     "mdi:power",
		},
	}
}

func ManagerSelects(device Device) []GenericSelect {
	modes := OperatingModes()
	options := make([]string, 0, len(modes))
	for _, m := range modes {
		options = append(options, string(m))
	}
	return []GenericSelect{
		{
			Device:   device,
			Id:       SELECT_ID_MODE,
			Name:     "Operating mode",
			UniqueId: uniqueId(device.Id, SELECT_ID_MODE),
			Icon:     "mdi:battery-sync",
			Options:  options,
		},
	}
}

func ManagerInputNumbers(device Device) []GenericInputNumber {
	return []GenericInputNumber{
		{
			Device:   device,
			Id:       INPUT_NUMBER_ID_MIN_SOC,
			Name:     "Min battery SoC",
			UniqueId: uniqueId(device.Id, INPUT_NUMBER_ID_MIN_SOC),
			Min:      0,
			Max:      100,
			Step:     1,
			Mode:     INPUT_NUMBER_MODE_SLIDER,
		},
		{
			Device:   device,
			Id:       INPUT_NUMBER_ID_MAX_CHARGE_POWER,
			Name:     "Max charge power",
			UniqueId: uniqueId(device.Id, INPUT_NUMBER_ID_MAX_CHARGE_POWER),
			Min:      100,
			Max:      5000,
			Step:     100,
			Mode:     INPUT_NUMBER_MODE_BOX,
		},
		{
			Device:   device,
			Id:       INPUT_NUMBER_ID_MIN_CHARGE_POWER,
			Name:     "Min charge power",
			UniqueId: uniqueId(device.Id, INPUT_NUMBER_ID_MIN_CHARGE_POWER),
			Min:      0,
			Max:      2000,
			Step:     50,
			Mode:     INPUT_NUMBER_MODE_BOX,
		},
		{
			Device:   device,
			Id:       INPUT_NUMBER_ID_STATIC_FEEDIN,
			Name:     "Static feed-in power",
			UniqueId: uniqueId(device.Id, INPUT_NUMBER_ID_STATIC_FEEDIN),
			Min:      0,
			Max:      800,
			Step:     50,
			Mode:     INPUT_NUMBER_MODE_BOX,
		},
		{
			Device:   device,
			Id:       INPUT_NUMBER_ID_GRID_TOLERANCE,
			Name:     "Grid import tolerance",
			UniqueId: uniqueId(device.Id, INPUT_NUMBER_ID_GRID_TOLERANCE),
			Min:      0,
			Max:      500,
			Step:     10,
			Mode:     INPUT_NUMBER_MODE_BOX,
		},
	}
}

func uniqueId(deviceId, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])[:8]
}
