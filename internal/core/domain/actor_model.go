package domain

import "time"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_METER        = "meter"
	ACTOR_ID_CONTROL      = "control"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// SensorField identifies one of the three live readings the control loop
// consumes.
type SensorField string

const (
	FieldGridPower  SensorField = "grid_power"
	FieldSolarPower SensorField = "solar_power"
	FieldBatterySoC SensorField = "battery_soc"
)

// SensorValueUpdate is pushed by a snapshot source (MQTT topics or the
// modbus meter) whenever a fresh reading arrives.
type SensorValueUpdate struct {
	Field SensorField
	Value float64
	At    time.Time
}

// ApplyControlCommandRequest asks the sink to drive the hardware entities
// to the given targets.
type ApplyControlCommandRequest struct {
	ActorRequestMixIn
	Command ControlCommand
}

type ApplyControlCommandResponse struct {
	ActorResponseMixIn
	Command ControlCommand
}

// Control requests

type ControlRequest interface {
	ActorRequest
	ControlCommandName() string
}

type ControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ControlRequestMixIn) ControlCommandName() string {
	return "control"
}

type ControlSetModeRequest struct {
	ControlRequestMixIn
	Mode OperatingMode
}

type ControlSetEnabledRequest struct {
	ControlRequestMixIn
	Enable bool
}

type ControlSetOptionRequest struct {
	ControlRequestMixIn
	Key   string
	Value float64
}

type ControlSetOptionResponse struct {
	ActorResponseMixIn
}

type ControlGetDecisionsRequest struct {
	ControlRequestMixIn
}

type ControlGetDecisionsResponse struct {
	ActorResponseMixIn
	Entries []DecisionLogEntry
}

type ControlGetStateRequest struct {
	ControlRequestMixIn
}

// ControlGetStateResponse is the diagnostics snapshot served over HTTP.
type ControlGetStateResponse struct {
	ActorResponseMixIn
	Mode       OperatingMode
	Enabled    bool
	FsmState   FsmState
	FsmSince   time.Time
	ChargeWatt float64
	FeedinWatt float64
	Snapshot   SensorSnapshot
}

// MQTT publish requests

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
	Selects      []GenericSelect
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
