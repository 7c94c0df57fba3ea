package engine

import (
	"testing"
	"time"
)

func hysteresis(low, high float64) ControlSettings {
	cs := DefaultSettings()
	cs.HysteresisLow, cs.HysteresisHigh = low, high
	return cs
}

func TestController_OnTimeClamp(t *testing.T) {
	c := NewController(DefaultTuning())
	cases := []struct {
		setpoint, reference float64
		want                time.Duration
	}{
		{20, 19.0, 36 * time.Second}, // 40s raw, clamped to max
		{20, 19.5, 20 * time.Second}, // proportional
		{20, 19.9, 12 * time.Second}, // 4s raw, clamped to min
		{20, 25.0, 36 * time.Second}, // sign of the error is ignored
		{20, 20.0, 12 * time.Second}, // zero error still gets the minimum
		{20, -500, 36 * time.Second}, // large error does not overflow
	}
	for _, tc := range cases {
		if got := c.OnTime(tc.setpoint, tc.reference); got != tc.want {
			t.Errorf("OnTime(%v, %v) = %v, want %v", tc.setpoint, tc.reference, got, tc.want)
		}
	}
}

func TestController_InvalidTuningFallsBack(t *testing.T) {
	c := NewController(Tuning{Gain: 1, MinOn: 10 * time.Second, MaxOn: 90 * time.Second, Cycle: 60 * time.Second})
	if c.Tuning() != DefaultTuning() {
		t.Fatalf("expected default tuning, got %+v", c.Tuning())
	}
}

func TestController_HysteresisBand(t *testing.T) {
	c := NewController(DefaultTuning())
	cs := hysteresis(-0.8, -0.1)
	var st RuntimeState

	// Inside the band from Idle: nothing happens.
	if p := c.Step(t0, 19.5, 20, cs, &st); p != PhaseIdle || st.PwmActive {
		t.Fatalf("expected idle inside band, got %s %+v", p, st)
	}

	if p := c.Step(t0, 19.0, 20, cs, &st); p != PhasePwmActive {
		t.Fatalf("expected PWM_ACTIVE, got %s", p)
	}
	if !st.PwmActive || !st.HeatingStartedAt.Equal(t0) || !st.HeaterOn {
		t.Fatalf("unexpected state on activation: %+v", st)
	}

	// Still inside the band while active: window stays open.
	if p := c.Step(t0.Add(5*time.Second), 19.85, 20, cs, &st); p != PhaseHeatingOn {
		t.Fatalf("expected HEATING_ON, got %s", p)
	}

	if p := c.Step(t0.Add(10*time.Second), 20.0, 20, cs, &st); p != PhaseIdle {
		t.Fatalf("expected IDLE, got %s", p)
	}
	if st.PwmActive || st.HeaterOn {
		t.Fatalf("window must close with actuator off: %+v", st)
	}
}

func TestController_DutyCycle36of60(t *testing.T) {
	c := NewController(DefaultTuning())
	cs := hysteresis(-0.8, -0.1)
	var st RuntimeState
	c.Step(t0, 19.0, 20, cs, &st)

	for _, tc := range []struct {
		offset time.Duration
		on     bool
	}{
		{0, true},
		{35 * time.Second, true},
		{36 * time.Second, false},
		{59 * time.Second, false},
		{60 * time.Second, true},
		{95 * time.Second, true},
		{96 * time.Second, false},
		{10*time.Minute + 1*time.Second, true},
	} {
		c.Step(t0.Add(tc.offset), 19.0, 20, cs, &st)
		if st.HeaterOn != tc.on {
			t.Errorf("at +%v heater=%v, want %v", tc.offset, st.HeaterOn, tc.on)
		}
		if !st.HeatingStartedAt.Equal(t0) {
			t.Fatalf("activation timestamp moved to %v", st.HeatingStartedAt)
		}
	}
}

func TestController_ReactivationResetsTimestamp(t *testing.T) {
	c := NewController(DefaultTuning())
	cs := hysteresis(-0.8, -0.1)
	var st RuntimeState
	c.Step(t0, 19.0, 20, cs, &st)
	c.Step(t0.Add(time.Minute), 20.5, 20, cs, &st)
	later := t0.Add(2 * time.Minute)
	c.Step(later, 19.0, 20, cs, &st)
	if !st.HeatingStartedAt.Equal(later) {
		t.Fatalf("HeatingStartedAt = %v, want %v", st.HeatingStartedAt, later)
	}
}
