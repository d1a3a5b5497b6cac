package powermeter

import (
	"fmt"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// PowerFlow holds one sampled meter reading. Grid power is signed: positive
// is import from the grid, negative is export.
type PowerFlow struct {
	GridPowerWatt  float64
	SolarPowerWatt float64
}

type PowerMeterReader interface {
	Open() error
	Close() error
	GetPowerFlow() (*PowerFlow, error)
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

// ModbusPowerMeterReader reads grid and solar power from two signed 16-bit
// holding registers of a modbus TCP energy meter.
type ModbusPowerMeterReader struct {
	client        *modbus.ModbusClient
	gridRegister  uint16
	solarRegister uint16
	instrument    []ModbusInstrument
}

func CreateModbusPowerMeterReader(ip string, port uint, unitId uint8, gridRegister, solarRegister uint16,
	timeout time.Duration, logger *zap.Logger, instrumentation *ModbusInstrument) (PowerMeterReader, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", ip, port),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	// instrumentation
	var inst []ModbusInstrument
	logInst := traceLoggerInstrumentation(logger.With(zap.String("target", "powerMeter")).With(zap.Uint8("unitId", unitId)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	err = client.SetUnitId(unitId)
	if err != nil {
		return nil, err
	}
	return &ModbusPowerMeterReader{
		client:        client,
		gridRegister:  gridRegister,
		solarRegister: solarRegister,
		instrument:    inst,
	}, nil
}

func (reader *ModbusPowerMeterReader) Open() error {
	return reader.client.Open()
}

func (reader *ModbusPowerMeterReader) Close() error {
	return reader.client.Close()
}

func (reader *ModbusPowerMeterReader) GetPowerFlow() (*PowerFlow, error) {
	grid, err := reader.readSignedRegister(reader.gridRegister)
	if err != nil {
		return nil, err
	}
	solar, err := reader.readSignedRegister(reader.solarRegister)
	if err != nil {
		return nil, err
	}
	return &PowerFlow{
		GridPowerWatt:  grid,
		SolarPowerWatt: solar,
	}, nil
}

func (reader *ModbusPowerMeterReader) readSignedRegister(addr uint16) (float64, error) {
	defer RecordTimer("ReadRegister", reader.instrument)()
	value, err := reader.client.ReadRegister(addr, modbus.HOLDING_REGISTER)
	if err != nil {
		return 0, err
	}
	return float64(int16(value)), nil
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Sugar().Debugf("modbus [%s]: %d millis", fnName, readTime.Milliseconds())
		},
	}
}
