package store

import (
	"time"

	"gorm.io/gorm"
)

// ControlStateRecord is a single-row table holding the controller state
// that must survive a restart.
type ControlStateRecord struct {
	ID         uint `gorm:"primarykey"`
	UpdatedAt  time.Time
	FsmState   string
	FsmSince   time.Time
	ChargeWatt float64
	FeedinWatt float64
}

// DecisionRecord archives every decision log entry. The in-memory ring only
// keeps the newest window; this table keeps history for later inspection.
type DecisionRecord struct {
	gorm.Model
	Timestamp time.Time `gorm:"index"`

	Event       string
	Reason      string
	OperMode    string
	StateBefore string
	StateAfter  string

	GridPowerWatt  float64
	SolarPowerWatt float64
	BatterySoC     float64

	ChargeEnabled    bool
	DischargeEnabled bool
	ChargePowerWatt  float64
	FeedinPowerWatt  float64
	SupplyMode       string
}
