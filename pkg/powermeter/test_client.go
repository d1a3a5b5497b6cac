package powermeter

func CreateTestPowerMeterReader() (PowerMeterReader, error) {
	return &TestPowerMeterReader{
		Flow: PowerFlow{
			GridPowerWatt:  320,
			SolarPowerWatt: 150,
		},
	}, nil
}

// TestPowerMeterReader returns a configurable fixed reading.
type TestPowerMeterReader struct {
	Flow PowerFlow
	Err  error
}

func (reader *TestPowerMeterReader) Open() error {
	return nil
}

func (reader *TestPowerMeterReader) Close() error {
	return nil
}

func (reader *TestPowerMeterReader) GetPowerFlow() (*PowerFlow, error) {
	if reader.Err != nil {
		return nil, reader.Err
	}
	flow := reader.Flow
	return &flow, nil
}
