package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/models"
	"thermostat_control/internal/repository"
)

// ErrUnknownThermostat is returned for ids not present in the fleet.
var ErrUnknownThermostat = errors.New("unknown thermostat")

// ThermostatSpec declares one thermostat of the fleet.
type ThermostatSpec struct {
	ID       string
	Setpoint float64
	Enabled  bool
}

// Fleet owns one engine instance per configured thermostat.
// The set of thermostats is fixed at construction.
type Fleet struct {
	byID  map[string]*engine.Thermostat
	specs map[string]ThermostatSpec
	ids   []string
}

// NewFleet builds a thermostat for every spec. Every instance starts from opts.
func NewFleet(specs []ThermostatSpec, opts engine.Options) (*Fleet, error) {
	f := &Fleet{
		byID:  make(map[string]*engine.Thermostat, len(specs)),
		specs: make(map[string]ThermostatSpec, len(specs)),
	}
	for _, s := range specs {
		if s.ID == "" {
			return nil, errors.New("thermostat id is empty")
		}
		if _, dup := f.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate thermostat id %q", s.ID)
		}
		f.byID[s.ID] = engine.New(s.ID, opts)
		f.specs[s.ID] = s
		f.ids = append(f.ids, s.ID)
	}
	sort.Strings(f.ids)
	return f, nil
}

// Get returns the thermostat with the given id.
func (f *Fleet) Get(id string) (*engine.Thermostat, error) {
	th, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownThermostat, id)
	}
	return th, nil
}

// IDs lists thermostat ids in sorted order.
func (f *Fleet) IDs() []string {
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}

// Restore loads the stored snapshot of every thermostat. Thermostats with no
// stored row start from their spec.
func (f *Fleet) Restore(ctx context.Context, repo repository.StateRepo) error {
	for _, id := range f.ids {
		st, err := repo.Load(ctx, id)
		if err != nil {
			return err
		}
		th := f.byID[id]
		if st.ThermostatID == "" {
			spec := f.specs[id]
			th.Restore(engine.Persisted{Enabled: spec.Enabled, Setpoint: spec.Setpoint})
			continue
		}
		th.Restore(engine.Persisted{Enabled: st.Enabled, Alarmed: st.Alarmed, Setpoint: st.Setpoint})
	}
	return nil
}

// stateOf builds the external snapshot of th at now.
func stateOf(th *engine.Thermostat, now time.Time) models.ThermostatState {
	st := th.Snapshot()
	ref, ok := th.Reference(now)
	if !ok {
		ref = st.ReferenceMemo
	}
	out := models.ThermostatState{
		ThermostatID: th.ID(),
		Enabled:      st.Enabled,
		Alarmed:      st.Alarmed,
		HeaterOn:     st.HeaterOn,
		Phase:        string(st.Phase()),
		Setpoint:     st.Setpoint,
		Reference:    ref,
		ReferenceOK:  ok,
		UpdatedAt:    now.UTC(),
	}
	if st.PwmActive {
		out.HeatingStarted = st.HeatingStartedAt.UTC()
	}
	return out
}
