package engine

import "time"

// Interlock is the runaway-heating guard. It wins over every other decision.
type Interlock struct{}

// Check trips the alarm when the heater is on and the current heating window
// has been running for longer than maxHeating. On trip it releases the heater,
// closes the PWM window and latches Alarmed; it returns true only on that tick.
func (Interlock) Check(now time.Time, st *RuntimeState, maxHeating time.Duration) bool {
	if !st.HeaterOn {
		return false
	}
	if now.Sub(st.HeatingStartedAt) <= maxHeating {
		return false
	}
	st.HeaterOn = false
	st.PwmActive = false
	st.Alarmed = true
	return true
}

// Release drops any heating output. Used while disabled or alarmed.
func (Interlock) Release(st *RuntimeState) {
	st.HeaterOn = false
	st.PwmActive = false
}
