package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"thermostat_control/internal/engine"
)

func TestMonitoringService_GetState(t *testing.T) {
	fleet := heatingFleet(t, "hall")
	clock := &fakeClock{now: t0.Add(time.Minute)}
	svc := NewMonitoringService(fleet, clock)

	got, err := svc.GetState(context.Background(), "hall")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ThermostatID != "hall" || !got.Enabled || got.Setpoint != 20 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if !got.ReferenceOK || got.Reference != 19 {
		t.Fatalf("expected live reference 19, got %+v", got)
	}
	if got.Phase != string(engine.PhaseIdle) || got.HeaterOn {
		t.Fatalf("no tick ran yet, expected IDLE: %+v", got)
	}
	if !got.UpdatedAt.Equal(clock.now) || got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("UpdatedAt = %v", got.UpdatedAt)
	}

	// stale data keeps the memo but flags the reference as unavailable
	th, _ := fleet.Get("hall")
	th.Evaluate(t0)
	clock.Advance(time.Hour)
	got, _ = svc.GetState(context.Background(), "hall")
	if got.ReferenceOK || got.Reference != 19 {
		t.Fatalf("expected memo with ReferenceOK=false, got %+v", got)
	}
}

func TestMonitoringService_UnknownThermostat(t *testing.T) {
	svc := NewMonitoringService(newTestFleet(t, "hall"), &fakeClock{now: t0})

	if _, err := svc.GetState(context.Background(), "attic"); !errors.Is(err, ErrUnknownThermostat) {
		t.Fatalf("expected ErrUnknownThermostat, got %v", err)
	}
	if _, err := svc.GetSettings(context.Background(), "attic"); !errors.Is(err, ErrUnknownThermostat) {
		t.Fatalf("expected ErrUnknownThermostat, got %v", err)
	}
}

func TestMonitoringService_ListStatesSorted(t *testing.T) {
	svc := NewMonitoringService(newTestFleet(t, "kitchen", "attic", "hall"), &fakeClock{now: t0})

	got, err := svc.ListStates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0].ThermostatID != "attic" || got[2].ThermostatID != "kitchen" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestMonitoringService_GetSettings(t *testing.T) {
	fleet := heatingFleet(t, "hall")
	th, _ := fleet.Get("hall")
	th.ApplySettings(map[string]any{engine.KeyTimeZone: "UTC", engine.KeyMaxHeatingSeconds: 3600})
	svc := NewMonitoringService(fleet, &fakeClock{now: t0})

	got, err := svc.GetSettings(context.Background(), "hall")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MaxHeatingSeconds != 3600 || got.TimeZone != "UTC" {
		t.Fatalf("unexpected settings: %+v", got)
	}
	if len(got.TemperatureSources) != 1 || got.TemperatureSources[0].ID != testSource {
		t.Fatalf("unexpected sources: %+v", got.TemperatureSources)
	}
	if got.Tuning.CycleSeconds != 60 || got.Tuning.Gain != 40 {
		t.Fatalf("unexpected tuning: %+v", got.Tuning)
	}
	if got.LastPatch[engine.KeyTimeZone] != "UTC" {
		t.Fatalf("unexpected last patch: %+v", got.LastPatch)
	}
}
