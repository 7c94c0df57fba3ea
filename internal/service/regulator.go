package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/logger"
	"thermostat_control/internal/models"
	"thermostat_control/internal/repository"

	"github.com/google/uuid"
)

// CommandSink delivers engine output to the devices.
type CommandSink interface {
	SetHeating(ctx context.Context, thermostatID string, on bool) error
	SetAlarm(ctx context.Context, thermostatID string, on bool) error
	ReportEnabled(ctx context.Context, thermostatID string, on bool) error
}

// Decision is the output of one thermostat for one tick.
type Decision struct {
	ThermostatID string
	engine.Output
}

// RegulatorService evaluates every thermostat on each tick and forwards the
// resulting transitions to the sink.
type RegulatorService struct {
	fleet     *Fleet
	sink      CommandSink
	stateRepo repository.StateRepo
	eventRepo repository.EventRepo
	clock     Clock
	log       *logger.Logger

	mu        sync.Mutex
	lastPhase map[string]engine.Phase
}

func NewRegulatorService(fleet *Fleet, sink CommandSink, stateRepo repository.StateRepo, eventRepo repository.EventRepo, clock Clock, log *logger.Logger) *RegulatorService {
	return &RegulatorService{
		fleet:     fleet,
		sink:      sink,
		stateRepo: stateRepo,
		eventRepo: eventRepo,
		clock:     clock,
		log:       log.Named("regulator"),
		lastPhase: make(map[string]engine.Phase),
	}
}

// Run ticks at the given interval until ctx is canceled.
func (r *RegulatorService) Run(ctx context.Context, tick time.Duration) {
	r.log.Infow("regulator_started", "tick", tick, "thermostats", len(r.fleet.IDs()))
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Infow("regulator_stopped")
			return
		case <-t.C:
			r.EvaluateAll(ctx)
		}
	}
}

// EvaluateAll runs one tick for every thermostat at the clock's current time.
func (r *RegulatorService) EvaluateAll(ctx context.Context) []Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	out := make([]Decision, 0, len(r.fleet.IDs()))
	for _, id := range r.fleet.IDs() {
		th, err := r.fleet.Get(id)
		if err != nil {
			continue
		}
		res := th.Evaluate(now)
		r.dispatch(ctx, id, res, now)

		if res.HasChanges() || r.lastPhase[id] != res.Phase {
			r.lastPhase[id] = res.Phase
			if err := r.stateRepo.Save(ctx, stateOf(th, now)); err != nil {
				r.log.Errorw("state_save_failed", "thermostat_id", id, "err", err)
			}
		}
		out = append(out, Decision{ThermostatID: id, Output: res})
	}
	return out
}

// Sync drives every actuator OFF. Called once at startup, before the first
// tick, since a fresh engine never commands a heater it believes is off.
func (r *RegulatorService) Sync(ctx context.Context) error {
	var errs []error
	for _, id := range r.fleet.IDs() {
		if err := r.sink.SetHeating(ctx, id, false); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (r *RegulatorService) dispatch(ctx context.Context, id string, res engine.Output, now time.Time) {
	if res.HeaterCommand != nil {
		on := *res.HeaterCommand
		if err := r.sink.SetHeating(ctx, id, on); err != nil {
			r.log.Errorw("heater_command_failed", "thermostat_id", id, "on", on, "err", err)
		}
		typ, desc := models.EventHeaterOff, "Heater switched off"
		if on {
			typ, desc = models.EventHeaterOn, "Heater switched on"
		}
		r.appendEvent(ctx, id, typ, desc, now, map[string]any{"phase": string(res.Phase), "reference": res.Reference})
	}

	if res.AlarmChanged != nil {
		on := *res.AlarmChanged
		if err := r.sink.SetAlarm(ctx, id, on); err != nil {
			r.log.Errorw("alarm_report_failed", "thermostat_id", id, "on", on, "err", err)
		}
		switch {
		case on && res.AlarmRestored:
			r.log.Warnw("alarm_restored", "thermostat_id", id)
		case on:
			r.appendEvent(ctx, id, models.EventAlarm, "Maximum heating time exceeded", now, nil)
		}
	}

	if res.EnabledChanged != nil {
		on := *res.EnabledChanged
		if err := r.sink.ReportEnabled(ctx, id, on); err != nil {
			r.log.Errorw("state_report_failed", "thermostat_id", id, "on", on, "err", err)
		}
		if !on {
			r.appendEvent(ctx, id, models.EventScheduledShutdown, "Scheduled shutdown", now, nil)
		}
	}
}

func (r *RegulatorService) appendEvent(ctx context.Context, id, typ, desc string, now time.Time, meta any) {
	err := r.eventRepo.Append(ctx, models.ThermostatEvent{
		EventID:      uuid.NewString(),
		ThermostatID: id,
		OccurredAt:   now.UTC(),
		Type:         typ,
		Description:  desc,
		Metadata:     meta,
	})
	if err != nil {
		r.log.Errorw("event_append_failed", "thermostat_id", id, "type", typ, "err", err)
	}
}

// LogSink writes commands to the log instead of a broker.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.Named("sink")}
}

func (s *LogSink) SetHeating(_ context.Context, id string, on bool) error {
	s.log.Infow("set_heating", "thermostat_id", id, "on", on)
	return nil
}

func (s *LogSink) SetAlarm(_ context.Context, id string, on bool) error {
	s.log.Infow("set_alarm", "thermostat_id", id, "on", on)
	return nil
}

func (s *LogSink) ReportEnabled(_ context.Context, id string, on bool) error {
	s.log.Infow("report_enabled", "thermostat_id", id, "on", on)
	return nil
}
