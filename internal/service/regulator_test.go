package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/models"
)

type regulatorFixture struct {
	reg    *RegulatorService
	fleet  *Fleet
	sink   *fakeSink
	events *fakeEventRepo
	states *fakeStateRepo
	clock  *fakeClock
}

func newRegulatorFixture(t *testing.T, fleet *Fleet) regulatorFixture {
	t.Helper()
	f := regulatorFixture{
		fleet:  fleet,
		sink:   &fakeSink{},
		events: &fakeEventRepo{},
		states: newFakeStateRepo(),
		clock:  &fakeClock{now: t0},
	}
	f.reg = NewRegulatorService(fleet, f.sink, f.states, f.events, f.clock, nil)
	return f
}

func TestRegulator_ForwardsTransitionsOnly(t *testing.T) {
	f := newRegulatorFixture(t, heatingFleet(t, "hall"))
	ctx := context.Background()

	decisions := f.reg.EvaluateAll(ctx)
	if len(decisions) != 1 || decisions[0].ThermostatID != "hall" || decisions[0].Phase != engine.PhasePwmActive {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}
	if got := f.sink.take(); !reflect.DeepEqual(got, []sinkCall{{"heating", "hall", true}}) {
		t.Fatalf("sink calls = %+v", got)
	}

	f.clock.Advance(10 * time.Second)
	f.reg.EvaluateAll(ctx)
	if got := f.sink.take(); len(got) != 0 {
		t.Fatalf("no transition, expected no command: %+v", got)
	}

	f.clock.Advance(30 * time.Second) // +40s, past the 36s ON share
	f.reg.EvaluateAll(ctx)
	if got := f.sink.take(); !reflect.DeepEqual(got, []sinkCall{{"heating", "hall", false}}) {
		t.Fatalf("sink calls = %+v", got)
	}

	want := []string{models.EventHeaterOn, models.EventHeaterOff}
	if got := f.events.types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v; want %v", got, want)
	}
	if row := f.states.rows["hall"]; row.Phase != string(engine.PhaseHeatingOff) {
		t.Fatalf("persisted phase = %q", row.Phase)
	}
}

func TestRegulator_AlarmPath(t *testing.T) {
	fleet := heatingFleet(t, "hall")
	th, _ := fleet.Get("hall")
	th.ApplySettings(map[string]any{engine.KeyMaxHeatingSeconds: 30})
	f := newRegulatorFixture(t, fleet)
	ctx := context.Background()

	f.reg.EvaluateAll(ctx)
	f.sink.take()

	f.clock.Advance(31 * time.Second) // heater still inside its 36s ON share
	if err := th.RecordSample(testSource, 19, f.clock.Now()); err != nil {
		t.Fatalf("RecordSample: %v", err)
	}
	f.reg.EvaluateAll(ctx)

	want := []sinkCall{{"heating", "hall", false}, {"alarm", "hall", true}}
	if got := f.sink.take(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sink calls = %+v; want %+v", got, want)
	}
	if !f.states.rows["hall"].Alarmed {
		t.Fatalf("alarm not persisted")
	}

	th.AcknowledgeAlarm()
	f.clock.Advance(time.Second)
	f.reg.EvaluateAll(ctx)
	got := f.sink.take()
	if len(got) != 2 || got[0] != (sinkCall{"heating", "hall", true}) || got[1] != (sinkCall{"alarm", "hall", false}) {
		t.Fatalf("expected heating resumed and alarm cleared, got %+v", got)
	}

	wantEvents := []string{models.EventHeaterOn, models.EventHeaterOff, models.EventAlarm, models.EventHeaterOn}
	if got := f.events.types(); !reflect.DeepEqual(got, wantEvents) {
		t.Fatalf("events = %v; want %v", got, wantEvents)
	}
}

func TestRegulator_RestoredAlarmIsRepublishedWithoutNewEvent(t *testing.T) {
	fleet := heatingFleet(t, "hall")
	f := newRegulatorFixture(t, fleet)
	ctx := context.Background()
	f.states.rows["hall"] = models.ThermostatState{ThermostatID: "hall", Enabled: true, Alarmed: true, Setpoint: 20}
	if err := fleet.Restore(ctx, f.states); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	f.reg.EvaluateAll(ctx)
	if got := f.sink.take(); !reflect.DeepEqual(got, []sinkCall{{"alarm", "hall", true}}) {
		t.Fatalf("sink calls = %+v", got)
	}
	if got := f.events.types(); len(got) != 0 {
		t.Fatalf("restored alarm must not append events, got %v", got)
	}
}

func TestRegulator_ScheduledShutdownReportsState(t *testing.T) {
	fleet := heatingFleet(t, "hall")
	th, _ := fleet.Get("hall")
	th.ApplySettings(map[string]any{
		engine.KeyScheduledShutdownEnabled: "true",
		engine.KeyScheduledShutdownTime:    12*3600 + 5,
	})
	f := newRegulatorFixture(t, fleet)
	ctx := context.Background()

	f.reg.EvaluateAll(ctx)
	f.sink.take()
	f.clock.Advance(10 * time.Second)
	f.reg.EvaluateAll(ctx)

	want := []sinkCall{{"heating", "hall", false}, {"enabled", "hall", false}}
	if got := f.sink.take(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sink calls = %+v; want %+v", got, want)
	}
	types := f.events.types()
	if types[len(types)-1] != models.EventScheduledShutdown {
		t.Fatalf("events = %v", types)
	}
	if f.states.rows["hall"].Enabled {
		t.Fatalf("persisted snapshot should be disabled")
	}
}

func TestRegulator_SinkErrorsAreNotFatal(t *testing.T) {
	f := newRegulatorFixture(t, heatingFleet(t, "hall"))
	f.sink.err = errors.New("broker offline")

	f.reg.EvaluateAll(context.Background())
	f.clock.Advance(time.Second)
	f.reg.EvaluateAll(context.Background())

	if got := f.sink.take(); len(got) != 1 {
		t.Fatalf("a failed command is not retried by the engine: %+v", got)
	}
}

func TestRegulator_Sync(t *testing.T) {
	f := newRegulatorFixture(t, newTestFleet(t, "b", "a"))

	if err := f.reg.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	want := []sinkCall{{"heating", "a", false}, {"heating", "b", false}}
	if got := f.sink.take(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sink calls = %+v", got)
	}

	f.sink.err = errors.New("broker offline")
	if err := f.reg.Sync(context.Background()); err == nil {
		t.Fatalf("expected joined error")
	}
}

func TestRegulator_RunStopsOnCancel(t *testing.T) {
	f := newRegulatorFixture(t, heatingFleet(t, "hall"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.reg.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		f.sink.mu.Lock()
		n := len(f.sink.calls)
		f.sink.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("regulator never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
