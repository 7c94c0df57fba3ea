package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/models"
	"thermostat_control/internal/repository"
)

// fakeEventRepo records appended events and answers List with a fixed result.
type fakeEventRepo struct {
	mu sync.Mutex

	appended  []models.ThermostatEvent
	appendErr error

	gotFilter repository.EventFilter
	events    []models.ThermostatEvent
	err       error
	calls     int
}

func (f *fakeEventRepo) Append(_ context.Context, e models.ThermostatEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeEventRepo) List(_ context.Context, rf repository.EventFilter) ([]models.ThermostatEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFilter = rf
	return f.events, f.err
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, e := range f.appended {
		out = append(out, e.Type)
	}
	return out
}

// fakeStateRepo is an in-memory StateRepo.
type fakeStateRepo struct {
	mu      sync.Mutex
	rows    map[string]models.ThermostatState
	saves   int
	loadErr error
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{rows: make(map[string]models.ThermostatState)}
}

func (f *fakeStateRepo) Save(_ context.Context, s models.ThermostatState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.rows[s.ThermostatID] = s
	return nil
}

func (f *fakeStateRepo) Load(_ context.Context, id string) (models.ThermostatState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return models.ThermostatState{}, f.loadErr
	}
	return f.rows[id], nil
}

func (f *fakeStateRepo) List(context.Context) ([]models.ThermostatState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ThermostatState, 0, len(f.rows))
	for _, s := range f.rows {
		out = append(out, s)
	}
	return out, nil
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sinkCall struct {
	kind string // heating | alarm | enabled
	id   string
	on   bool
}

// fakeSink records every command.
type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
	err   error
}

func (s *fakeSink) add(kind, id string, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{kind: kind, id: id, on: on})
	return s.err
}

func (s *fakeSink) SetHeating(_ context.Context, id string, on bool) error {
	return s.add("heating", id, on)
}

func (s *fakeSink) SetAlarm(_ context.Context, id string, on bool) error {
	return s.add("alarm", id, on)
}

func (s *fakeSink) ReportEnabled(_ context.Context, id string, on bool) error {
	return s.add("enabled", id, on)
}

func (s *fakeSink) take() []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.calls
	s.calls = nil
	return out
}

var t0 = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

const testSource = "v1/home/boiler/T1/value"

func newTestFleet(t *testing.T, ids ...string) *Fleet {
	t.Helper()
	specs := make([]ThermostatSpec, 0, len(ids))
	for _, id := range ids {
		specs = append(specs, ThermostatSpec{ID: id})
	}
	f, err := NewFleet(specs, engine.Options{})
	if err != nil {
		t.Fatalf("NewFleet: %v", err)
	}
	return f
}

// heatingFleet returns a one-thermostat fleet that will heat on the next tick.
func heatingFleet(t *testing.T, id string) *Fleet {
	t.Helper()
	f := newTestFleet(t, id)
	th, _ := f.Get(id)
	th.ApplySettings(map[string]any{engine.KeyTemperatureSources: map[string]any{testSource: 1}})
	th.Restore(engine.Persisted{Enabled: true, Setpoint: 20})
	if err := th.RecordSample(testSource, 19, t0); err != nil {
		t.Fatalf("RecordSample: %v", err)
	}
	return f
}
