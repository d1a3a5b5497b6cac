package store

import (
	"errors"
	"fmt"

	"powerstream2mqtt/internal/config"
	"powerstream2mqtt/internal/core/domain"
	"powerstream2mqtt/internal/core/port"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const controlStateRowID = 1

// SQLiteStateStore persists the controller state and the decision archive.
type SQLiteStateStore struct {
	db *gorm.DB
}

var _ port.StateStore = (*SQLiteStateStore)(nil)

func NewSQLiteStateStore(cfg config.StoreConfig) (*SQLiteStateStore, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&ControlStateRecord{}, &DecisionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteStateStore{db: db}, nil
}

func (s *SQLiteStateStore) SaveControlState(state domain.ControlState) error {
	record := ControlStateRecord{
		ID:         controlStateRowID,
		FsmState:   string(state.FsmState),
		FsmSince:   state.FsmSince,
		ChargeWatt: state.ChargeWatt,
		FeedinWatt: state.FeedinWatt,
	}
	return s.db.Save(&record).Error
}

// LoadControlState returns found=false when no state was ever saved or the
// saved row does not parse; the caller then starts from defaults.
func (s *SQLiteStateStore) LoadControlState() (domain.ControlState, bool, error) {
	var record ControlStateRecord
	result := s.db.First(&record, controlStateRowID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return domain.ControlState{}, false, nil
		}
		return domain.ControlState{}, false, result.Error
	}
	fsmState, ok := domain.ParseFsmState(record.FsmState)
	if !ok {
		return domain.ControlState{}, false, nil
	}
	return domain.ControlState{
		FsmState:   fsmState,
		FsmSince:   record.FsmSince,
		ChargeWatt: record.ChargeWatt,
		FeedinWatt: record.FeedinWatt,
	}, true, nil
}

func (s *SQLiteStateStore) AppendDecision(entry domain.DecisionLogEntry) error {
	record := DecisionRecord{
		Timestamp:        entry.Timestamp,
		Event:            entry.Event,
		Reason:           entry.Reason,
		OperMode:         string(entry.Mode),
		StateBefore:      string(entry.StateBefore),
		StateAfter:       string(entry.StateAfter),
		GridPowerWatt:    entry.GridPower,
		SolarPowerWatt:   entry.SolarPower,
		BatterySoC:       entry.BatterySoC,
		ChargeEnabled:    entry.Command.ChargeEnabled,
		DischargeEnabled: entry.Command.DischargeEnabled,
		ChargePowerWatt:  entry.Command.ChargePowerWatt,
		FeedinPowerWatt:  entry.Command.FeedinPowerWatt,
		SupplyMode:       string(entry.Command.SupplyMode),
	}
	return s.db.Create(&record).Error
}

// RecentDecisions returns the newest archived entries ordered oldest first.
func (s *SQLiteStateStore) RecentDecisions(limit int) ([]domain.DecisionLogEntry, error) {
	var records []DecisionRecord
	result := s.db.Order("id desc").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	entries := make([]domain.DecisionLogEntry, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		entries = append(entries, recordToEntry(records[i]))
	}
	return entries, nil
}

func (s *SQLiteStateStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordToEntry(record DecisionRecord) domain.DecisionLogEntry {
	mode, _ := domain.ParseOperatingMode(record.OperMode)
	stateBefore, _ := domain.ParseFsmState(record.StateBefore)
	stateAfter, _ := domain.ParseFsmState(record.StateAfter)
	return domain.DecisionLogEntry{
		Timestamp:   record.Timestamp,
		Event:       record.Event,
		Reason:      record.Reason,
		Mode:        mode,
		StateBefore: stateBefore,
		StateAfter:  stateAfter,
		GridPower:   record.GridPowerWatt,
		SolarPower:  record.SolarPowerWatt,
		BatterySoC:  record.BatterySoC,
		Command: domain.ControlCommand{
			ChargeEnabled:    record.ChargeEnabled,
			DischargeEnabled: record.DischargeEnabled,
			ChargePowerWatt:  record.ChargePowerWatt,
			FeedinPowerWatt:  record.FeedinPowerWatt,
			SupplyMode:       domain.SupplyMode(record.SupplyMode),
		},
	}
}
