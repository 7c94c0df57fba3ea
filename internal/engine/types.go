// Package engine holds the thermostat control logic: reference aggregation,
// live settings, the runaway-heating interlock and the PWM duty-cycle controller.
// It performs no I/O. Time is always passed in by the caller.
package engine

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxSampleAge is how long a reading stays usable for the reference.
const DefaultMaxSampleAge = 15 * time.Minute

// TemperatureSample is the latest reading of one source.
type TemperatureSample struct {
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// WeightedSource is a registered reference input. Weight 0 disables it.
type WeightedSource struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

// ScheduledShutdown disables the thermostat once a day at AtSecondsOfDay.
type ScheduledShutdown struct {
	Enabled        bool `json:"enabled"`
	AtSecondsOfDay int  `json:"at_seconds_of_day"`
}

// ControlSettings are the live-tunable parameters owned by SettingsStore.
type ControlSettings struct {
	HysteresisHigh    float64           `json:"hysteresis_high"`
	HysteresisLow     float64           `json:"hysteresis_low"`
	MaxHeating        time.Duration     `json:"max_heating"`
	ScheduledShutdown ScheduledShutdown `json:"scheduled_shutdown"`
	// Location is used to resolve the scheduled shutdown time of day.
	Location *time.Location `json:"-"`
}

// DefaultSettings starts heating 0.8° below the setpoint, stops 0.1° below it
// and raises the alarm after 8 hours of continuous PWM operation.
func DefaultSettings() ControlSettings {
	return ControlSettings{
		HysteresisHigh: -0.1,
		HysteresisLow:  -0.8,
		MaxHeating:     8 * time.Hour,
		Location:       time.UTC,
	}
}

// Tuning holds the proportional PWM constants.
type Tuning struct {
	Gain  float64       `json:"gain"`
	MinOn time.Duration `json:"min_on"`
	MaxOn time.Duration `json:"max_on"`
	Cycle time.Duration `json:"cycle"`
}

// DefaultTuning: 40 s of ON time per degree of error, clamped to 12..36 s of a 60 s window.
func DefaultTuning() Tuning {
	return Tuning{
		Gain:  40.0,
		MinOn: 12 * time.Second,
		MaxOn: 36 * time.Second,
		Cycle: 60 * time.Second,
	}
}

var errInvalidTuning = errors.New("invalid pwm tuning")

// Validate checks 0 <= MinOn <= MaxOn <= Cycle, Cycle > 0 and Gain >= 0.
func (t Tuning) Validate() error {
	switch {
	case t.Cycle <= 0:
		return fmt.Errorf("%w: cycle must be > 0, got %v", errInvalidTuning, t.Cycle)
	case t.Gain < 0:
		return fmt.Errorf("%w: gain must be >= 0, got %v", errInvalidTuning, t.Gain)
	case t.MinOn < 0 || t.MinOn > t.MaxOn:
		return fmt.Errorf("%w: need 0 <= min_on <= max_on, got %v..%v", errInvalidTuning, t.MinOn, t.MaxOn)
	case t.MaxOn > t.Cycle:
		return fmt.Errorf("%w: max_on %v exceeds cycle %v", errInvalidTuning, t.MaxOn, t.Cycle)
	}
	return nil
}

// Phase is the duty-cycle controller state.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhasePwmActive  Phase = "PWM_ACTIVE" // reported on the tick the PWM window opens
	PhaseHeatingOn  Phase = "HEATING_ON"
	PhaseHeatingOff Phase = "HEATING_OFF"
)

// RuntimeState is the single mutable state of one thermostat.
// HeaterOn is only ever true while Enabled && !Alarmed.
type RuntimeState struct {
	Enabled          bool      `json:"enabled"`
	Alarmed          bool      `json:"alarmed"`
	HeaterOn         bool      `json:"heater_on"`
	PwmActive        bool      `json:"pwm_active"`
	Setpoint         float64   `json:"setpoint"`
	HeatingStartedAt time.Time `json:"heating_started_at"`
	ReferenceMemo    float64   `json:"reference_memo"`
}

// Phase derives the controller phase from the state flags.
func (s RuntimeState) Phase() Phase {
	switch {
	case !s.PwmActive:
		return PhaseIdle
	case s.HeaterOn:
		return PhaseHeatingOn
	default:
		return PhaseHeatingOff
	}
}

// Output is everything one Evaluate call asks the host to do.
// A nil pointer means "no change"; the host publishes only non-nil fields.
type Output struct {
	HeaterCommand  *bool   `json:"heater_command,omitempty"`
	AlarmChanged   *bool   `json:"alarm_changed,omitempty"`
	EnabledChanged *bool   `json:"enabled_changed,omitempty"`
	Phase          Phase   `json:"phase"`
	Reference      float64 `json:"reference,omitempty"`
	ReferenceOK    bool    `json:"reference_ok"`
	// Skipped names the reason no control decision was taken this tick.
	Skipped string `json:"skipped,omitempty"`
	// AlarmRestored marks an AlarmChanged that re-reports a latch loaded by
	// Restore rather than a new trip.
	AlarmRestored bool `json:"alarm_restored,omitempty"`
}

// HasChanges reports whether the host has anything to publish.
func (o Output) HasChanges() bool {
	return o.HeaterCommand != nil || o.AlarmChanged != nil || o.EnabledChanged != nil
}

func boolPtr(b bool) *bool { return &b }
