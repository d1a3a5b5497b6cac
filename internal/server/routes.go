package server

import (
	"net/http"
	"time"

	"powerstream2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/state", s.ControlStateHandler)
	e.GET("/api/decisions", s.DecisionsHandler)
	e.GET("/api/decisions/last", s.LastDecisionHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// controlStateDTO is the JSON shape of the controller diagnostics endpoint.
type controlStateDTO struct {
	Mode       string    `json:"mode"`
	Enabled    bool      `json:"enabled"`
	State      string    `json:"state"`
	StateSince time.Time `json:"state_since"`
	ChargeWatt float64   `json:"charge_w"`
	FeedinWatt float64   `json:"feedin_w"`
	GridPower  *float64  `json:"grid_power_w"`
	SolarPower *float64  `json:"solar_power_w"`
	BatterySoC *float64  `json:"battery_soc"`
}

type decisionDTO struct {
	Timestamp   time.Time `json:"timestamp"`
	Event       string    `json:"event"`
	Reason      string    `json:"reason"`
	Mode        string    `json:"mode"`
	StateBefore string    `json:"state_before"`
	StateAfter  string    `json:"state_after"`
	GridPower   float64   `json:"grid_power_w"`
	SolarPower  float64   `json:"solar_power_w"`
	BatterySoC  float64   `json:"battery_soc"`
}

func (s *Server) ControlStateHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ControlGetStateRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.ControlGetStateResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	dto := controlStateDTO{
		Mode:       string(response.Mode),
		Enabled:    response.Enabled,
		State:      string(response.FsmState),
		StateSince: response.FsmSince,
		ChargeWatt: response.ChargeWatt,
		FeedinWatt: response.FeedinWatt,
	}
	if response.Snapshot.GridPower.Available {
		value := response.Snapshot.GridPower.Value
		dto.GridPower = &value
	}
	if response.Snapshot.SolarPower.Available {
		value := response.Snapshot.SolarPower.Value
		dto.SolarPower = &value
	}
	if response.Snapshot.BatterySoC.Available {
		value := response.Snapshot.BatterySoC.Value
		dto.BatterySoC = &value
	}
	return c.JSON(http.StatusOK, dto)
}

func (s *Server) DecisionsHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ControlGetDecisionsRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.ControlGetDecisionsResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	dtos := make([]decisionDTO, 0, len(response.Entries))
	for _, entry := range response.Entries {
		dtos = append(dtos, entryToDTO(entry))
	}
	return c.JSON(http.StatusOK, dtos)
}

func (s *Server) LastDecisionHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ControlGetDecisionsRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	response, ok := res.(domain.ControlGetDecisionsResponse)
	if !ok {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	if len(response.Entries) == 0 {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, entryToDTO(response.Entries[len(response.Entries)-1]))
}

func entryToDTO(entry domain.DecisionLogEntry) decisionDTO {
	return decisionDTO{
		Timestamp:   entry.Timestamp,
		Event:       entry.Event,
		Reason:      entry.Reason,
		Mode:        string(entry.Mode),
		StateBefore: string(entry.StateBefore),
		StateAfter:  string(entry.StateAfter),
		GridPower:   entry.GridPower,
		SolarPower:  entry.SolarPower,
		BatterySoC:  entry.BatterySoC,
	}
}
