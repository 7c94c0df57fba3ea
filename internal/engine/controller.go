package engine

import (
	"math"
	"time"
)

// Controller is the hysteresis-gated proportional PWM controller.
type Controller struct {
	tuning Tuning
}

// NewController falls back to DefaultTuning when t does not validate.
func NewController(t Tuning) Controller {
	if t.Validate() != nil {
		t = DefaultTuning()
	}
	return Controller{tuning: t}
}

// Tuning returns the constants in use.
func (c Controller) Tuning() Tuning {
	return c.tuning
}

// OnTime is the ON share of one cycle: |setpoint-reference| * gain seconds,
// clamped to [MinOn, MaxOn].
func (c Controller) OnTime(setpoint, reference float64) time.Duration {
	secs := math.Abs(setpoint-reference) * c.tuning.Gain
	secs = math.Max(secs, c.tuning.MinOn.Seconds())
	secs = math.Min(secs, c.tuning.MaxOn.Seconds())
	return time.Duration(secs * float64(time.Second))
}

// Step runs one tick of the controller on st and returns the resulting phase.
// The window opens when reference <= setpoint+HysteresisLow and closes when
// reference >= setpoint+HysteresisHigh. Inside the window the heater is ON for
// the first OnTime of every cycle, counted from the window activation.
func (c Controller) Step(now time.Time, reference, setpoint float64, cs ControlSettings, st *RuntimeState) Phase {
	opened := false
	switch {
	case !st.PwmActive && reference <= setpoint+cs.HysteresisLow:
		st.PwmActive = true
		st.HeatingStartedAt = now
		opened = true
	case st.PwmActive && reference >= setpoint+cs.HysteresisHigh:
		st.PwmActive = false
	}

	if !st.PwmActive {
		st.HeaterOn = false
		return PhaseIdle
	}

	running := now.Sub(st.HeatingStartedAt)
	if running < 0 {
		running = 0
	}
	st.HeaterOn = running%c.tuning.Cycle < c.OnTime(setpoint, reference)

	if opened {
		return PhasePwmActive
	}
	return st.Phase()
}
