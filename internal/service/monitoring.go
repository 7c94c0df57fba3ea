package service

import (
	"context"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/models"
)

type MonitoringService struct {
	fleet *Fleet
	clock Clock
}

func NewMonitoringService(fleet *Fleet, clock Clock) *MonitoringService {
	return &MonitoringService{fleet: fleet, clock: clock}
}

// SettingsView is the readable form of a thermostat's live settings.
type SettingsView struct {
	HysteresisHigh           float64                 `json:"hysteresisHigh"`
	HysteresisLow            float64                 `json:"hysteresisLow"`
	MaxHeatingSeconds        int64                   `json:"maxHeatingSeconds"`
	TemperatureSources       []engine.WeightedSource `json:"temperatureSources"`
	ScheduledShutdownEnabled bool                    `json:"scheduledShutdownEnabled"`
	ScheduledShutdownTime    int                     `json:"scheduledShutdownTime"`
	TimeZone                 string                  `json:"timeZone"`
	Tuning                   TuningView              `json:"tuning"`
	LastPatch                map[string]any          `json:"lastPatch,omitempty"`
}

// TuningView reports the PWM constants in seconds.
type TuningView struct {
	Gain         float64 `json:"gain"`
	MinOnSeconds float64 `json:"minOnSeconds"`
	MaxOnSeconds float64 `json:"maxOnSeconds"`
	CycleSeconds float64 `json:"cycleSeconds"`
}

// GetState returns the live snapshot of one thermostat.
func (s *MonitoringService) GetState(_ context.Context, id string) (models.ThermostatState, error) {
	th, err := s.fleet.Get(id)
	if err != nil {
		return models.ThermostatState{}, err
	}
	return stateOf(th, s.clock.Now()), nil
}

// ListStates returns the live snapshot of every thermostat, ordered by id.
func (s *MonitoringService) ListStates(ctx context.Context) ([]models.ThermostatState, error) {
	ids := s.fleet.IDs()
	out := make([]models.ThermostatState, 0, len(ids))
	for _, id := range ids {
		st, err := s.GetState(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *MonitoringService) GetSettings(_ context.Context, id string) (SettingsView, error) {
	th, err := s.fleet.Get(id)
	if err != nil {
		return SettingsView{}, err
	}
	cs := th.Settings()
	tn := th.Tuning()
	v := SettingsView{
		HysteresisHigh:           cs.HysteresisHigh,
		HysteresisLow:            cs.HysteresisLow,
		MaxHeatingSeconds:        int64(cs.MaxHeating.Seconds()),
		TemperatureSources:       th.Sources(),
		ScheduledShutdownEnabled: cs.ScheduledShutdown.Enabled,
		ScheduledShutdownTime:    cs.ScheduledShutdown.AtSecondsOfDay,
		Tuning: TuningView{
			Gain:         tn.Gain,
			MinOnSeconds: tn.MinOn.Seconds(),
			MaxOnSeconds: tn.MaxOn.Seconds(),
			CycleSeconds: tn.Cycle.Seconds(),
		},
		LastPatch: th.LastPatch(),
	}
	if cs.Location != nil {
		v.TimeZone = cs.Location.String()
	}
	return v, nil
}
