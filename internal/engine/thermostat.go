package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"thermostat_control/internal/logger"
)

// ErrInvalidSetpoint is returned for non-finite setpoints.
var ErrInvalidSetpoint = errors.New("invalid setpoint")

// Skip reasons reported in Output.Skipped.
const (
	SkipDisabled    = "disabled"
	SkipAlarmed     = "alarmed"
	SkipNoReference = "no_reference"
	SkipNoSetpoint  = "no_setpoint"
)

// Options configure a Thermostat. Zero values select the defaults.
type Options struct {
	Settings     ControlSettings
	Tuning       Tuning
	MaxSampleAge time.Duration
	Logger       *logger.Logger
}

// Persisted is the part of RuntimeState restored after a restart.
type Persisted struct {
	Enabled  bool
	Alarmed  bool
	Setpoint float64
}

// Thermostat owns the complete control state of one device. Inputs only
// mutate state; Evaluate is the single place where output is produced.
// All methods are safe for concurrent use and serialized per instance.
type Thermostat struct {
	mu sync.Mutex

	id           string
	log          *logger.Logger
	maxSampleAge time.Duration

	sources    *Aggregator
	settings   *SettingsStore
	interlock  Interlock
	controller Controller

	state RuntimeState

	// last values handed to the host, used to emit only on transitions
	commandedHeater bool
	reportedAlarm   bool
	restoredAlarm   bool
	lastEval        time.Time
}

// New builds a disabled thermostat with no setpoint and no sources.
func New(id string, opts Options) *Thermostat {
	settings := opts.Settings
	if settings == (ControlSettings{}) {
		settings = DefaultSettings()
	}
	if settings.MaxHeating <= 0 {
		settings.MaxHeating = DefaultSettings().MaxHeating
	}
	tuning := opts.Tuning
	if tuning == (Tuning{}) {
		tuning = DefaultTuning()
	}
	maxAge := opts.MaxSampleAge
	if maxAge <= 0 {
		maxAge = DefaultMaxSampleAge
	}
	log := opts.Logger.Named("thermostat", "thermostat_id", id)

	agg := NewAggregator()
	return &Thermostat{
		id:           id,
		log:          log,
		maxSampleAge: maxAge,
		sources:      agg,
		settings:     NewSettingsStore(settings, agg, log),
		controller:   NewController(tuning),
	}
}

// ID returns the thermostat identifier.
func (t *Thermostat) ID() string { return t.id }

// RecordSample stores a reading for source. Malformed readings are logged and
// the previous sample for the source is kept.
func (t *Thermostat) RecordSample(source string, value float64, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.sources.RecordSample(source, value, at); err != nil {
		t.log.Warnw("sample_rejected", "source", source, "err", err)
		return err
	}
	return nil
}

// SetSetpoint changes the target temperature. Values <= 0 leave the
// thermostat without a usable setpoint.
func (t *Thermostat) SetSetpoint(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSetpoint, v)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Setpoint = v
	return nil
}

// SetEnabled switches the thermostat on or off and reports whether the flag changed.
// Disabling drops the heater demand immediately; the OFF command goes out on the next Evaluate.
func (t *Thermostat) SetEnabled(on bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := t.state.Enabled != on
	t.state.Enabled = on
	if !on {
		t.interlock.Release(&t.state)
	}
	return changed
}

// AcknowledgeAlarm clears a latched alarm and reports whether one was set.
func (t *Thermostat) AcknowledgeAlarm() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.state.Alarmed
	t.state.Alarmed = false
	if was {
		t.log.Infow("alarm_acknowledged")
	}
	return was
}

// ApplySettings applies a partial settings update.
func (t *Thermostat) ApplySettings(patch map[string]any) PatchReport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings.Apply(patch)
}

// Settings returns the live settings.
func (t *Thermostat) Settings() ControlSettings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings.Current()
}

// LastPatch returns the last raw settings patch.
func (t *Thermostat) LastPatch() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings.LastPatch()
}

// Sources lists the registered reference sources.
func (t *Thermostat) Sources() []WeightedSource {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sources.Sources()
}

// Tuning returns the PWM constants.
func (t *Thermostat) Tuning() Tuning {
	return t.controller.Tuning()
}

// Reference returns the current aggregated reference.
func (t *Thermostat) Reference(now time.Time) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sources.Reference(now, t.maxSampleAge)
}

// Snapshot returns a copy of the runtime state.
func (t *Thermostat) Snapshot() RuntimeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Restore loads persisted flags after a restart. The heater always starts OFF,
// and a restored alarm is reported again on the next Evaluate.
func (t *Thermostat) Restore(p Persisted) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Enabled = p.Enabled
	t.state.Alarmed = p.Alarmed
	t.state.Setpoint = p.Setpoint
	t.restoredAlarm = p.Alarmed
	t.interlock.Release(&t.state)
}

// Evaluate runs one control tick at now. Order: enable/alarm gate, scheduled
// shutdown, safety interlock, then the duty-cycle controller. It returns at most
// one heater command and one alarm change, and only on actual transitions.
func (t *Thermostat) Evaluate(now time.Time) Output {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out Output
	last := t.lastEval
	t.lastEval = now
	cs := t.settings.Current()

	switch {
	case t.state.Alarmed:
		t.interlock.Release(&t.state)
		out.Skipped = SkipAlarmed
	case !t.state.Enabled:
		t.interlock.Release(&t.state)
		out.Skipped = SkipDisabled
	case shutdownDue(cs.ScheduledShutdown, cs.Location, last, now):
		t.state.Enabled = false
		t.interlock.Release(&t.state)
		out.EnabledChanged = boolPtr(false)
		out.Skipped = SkipDisabled
		t.log.Infow("scheduled_shutdown", "at_seconds_of_day", cs.ScheduledShutdown.AtSecondsOfDay)
	case t.interlock.Check(now, &t.state, cs.MaxHeating):
		out.Skipped = SkipAlarmed
		t.log.Errorw("heating_overrun", "started_at", t.state.HeatingStartedAt, "max_heating", cs.MaxHeating)
	default:
		t.control(now, cs, &out)
	}

	if out.Phase == "" {
		out.Phase = t.state.Phase()
	}
	t.collect(&out)
	return out
}

func (t *Thermostat) control(now time.Time, cs ControlSettings, out *Output) {
	ref, ok := t.sources.Reference(now, t.maxSampleAge)
	out.Reference, out.ReferenceOK = ref, ok
	switch {
	case !ok:
		out.Skipped = SkipNoReference
		t.log.Warnw("no_decision", "reason", SkipNoReference, "setpoint", t.state.Setpoint)
		return
	case t.state.Setpoint <= 0:
		out.Skipped = SkipNoSetpoint
		t.log.Warnw("no_decision", "reason", SkipNoSetpoint, "reference", ref)
		return
	}
	t.state.ReferenceMemo = ref
	out.Phase = t.controller.Step(now, ref, t.state.Setpoint, cs, &t.state)
}

// collect fills the output with the differences against what was last reported.
func (t *Thermostat) collect(out *Output) {
	if t.state.HeaterOn != t.commandedHeater {
		t.commandedHeater = t.state.HeaterOn
		out.HeaterCommand = boolPtr(t.state.HeaterOn)
		t.log.Infow("heater_command", "on", t.state.HeaterOn, "phase", out.Phase)
	}
	if t.state.Alarmed != t.reportedAlarm {
		t.reportedAlarm = t.state.Alarmed
		out.AlarmChanged = boolPtr(t.state.Alarmed)
		out.AlarmRestored = t.state.Alarmed && t.restoredAlarm
	}
	t.restoredAlarm = false
}
