package models

import "time"

// ThermostatState is the externally visible snapshot of one thermostat.
type ThermostatState struct {
	ThermostatID   string    `json:"thermostat_id"`
	Enabled        bool      `json:"enabled"`
	Alarmed        bool      `json:"alarmed"`
	HeaterOn       bool      `json:"heater_on"`
	Phase          string    `json:"phase"`               // IDLE | PWM_ACTIVE | HEATING_ON | HEATING_OFF
	Setpoint       float64   `json:"setpoint,omitempty"`  // °C
	Reference      float64   `json:"reference,omitempty"` // °C, last valid aggregated value
	ReferenceOK    bool      `json:"reference_ok"`        // a fresh reference is available now
	HeatingStarted time.Time `json:"heating_started,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
