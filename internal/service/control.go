package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/logger"
	"thermostat_control/internal/models"
	"thermostat_control/internal/repository"

	"github.com/google/uuid"
)

type ControlService struct {
	fleet     *Fleet
	stateRepo repository.StateRepo
	eventRepo repository.EventRepo
	clock     Clock
	log       *logger.Logger
}

func NewControlService(fleet *Fleet, stateRepo repository.StateRepo, eventRepo repository.EventRepo, clock Clock, log *logger.Logger) *ControlService {
	return &ControlService{
		fleet:     fleet,
		stateRepo: stateRepo,
		eventRepo: eventRepo,
		clock:     clock,
		log:       log.Named("control"),
	}
}

// Enable turns regulation on. Enabling an enabled thermostat records nothing.
func (s *ControlService) Enable(ctx context.Context, id string) error {
	return s.setEnabled(ctx, id, true)
}

// Disable turns regulation off; the heater is released on the next tick.
func (s *ControlService) Disable(ctx context.Context, id string) error {
	return s.setEnabled(ctx, id, false)
}

func (s *ControlService) setEnabled(ctx context.Context, id string, on bool) error {
	th, err := s.fleet.Get(id)
	if err != nil {
		return err
	}
	if !th.SetEnabled(on) {
		return nil
	}
	typ, desc := models.EventEnable, "Thermostat enabled"
	if !on {
		typ, desc = models.EventDisable, "Thermostat disabled"
	}
	s.record(ctx, th, typ, desc, nil)
	return nil
}

// SetSetpoint requires a finite value above zero.
func (s *ControlService) SetSetpoint(ctx context.Context, id string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return fmt.Errorf("%w: must be a finite number > 0, got %v", engine.ErrInvalidSetpoint, value)
	}
	th, err := s.fleet.Get(id)
	if err != nil {
		return err
	}
	prev := th.Snapshot().Setpoint
	if err := th.SetSetpoint(value); err != nil {
		return err
	}
	s.record(ctx, th, models.EventSetpoint, fmt.Sprintf("Setpoint changed to %.2f", value),
		map[string]any{"from": prev, "to": value})
	return nil
}

// ApplySettings applies a partial settings patch and reports every field.
func (s *ControlService) ApplySettings(ctx context.Context, id string, patch map[string]any) (engine.PatchReport, error) {
	th, err := s.fleet.Get(id)
	if err != nil {
		return engine.PatchReport{}, err
	}
	report := th.ApplySettings(patch)
	if accepted := report.Accepted(); len(accepted) > 0 {
		s.record(ctx, th, models.EventSettings, "Settings updated", map[string]any{
			"accepted": accepted,
			"rejected": report.Rejected(),
		})
	}
	return report, nil
}

// AcknowledgeAlarm clears a latched alarm. Acknowledging with no alarm is a no-op.
func (s *ControlService) AcknowledgeAlarm(ctx context.Context, id string) error {
	th, err := s.fleet.Get(id)
	if err != nil {
		return err
	}
	if th.AcknowledgeAlarm() {
		s.record(ctx, th, models.EventAlarmAck, "Alarm acknowledged", nil)
	}
	return nil
}

// RecordSample stores a reading. A zero at is stamped with the service clock.
func (s *ControlService) RecordSample(ctx context.Context, id, source string, value float64, at time.Time) error {
	th, err := s.fleet.Get(id)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = s.clock.Now()
	}
	return th.RecordSample(source, value, at)
}

// record persists the snapshot and appends an event. Failures are logged only:
// the engine change already happened and the regulator acts on it regardless.
func (s *ControlService) record(ctx context.Context, th *engine.Thermostat, typ, desc string, meta any) {
	now := s.clock.Now().UTC()
	if err := s.stateRepo.Save(ctx, stateOf(th, now)); err != nil {
		s.log.Errorw("state_save_failed", "thermostat_id", th.ID(), "err", err)
	}
	ev := models.ThermostatEvent{
		EventID:      uuid.NewString(),
		ThermostatID: th.ID(),
		OccurredAt:   now,
		Type:         typ,
		Description:  desc,
		OperatorID:   OperatorFrom(ctx),
		Metadata:     meta,
	}
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		s.log.Errorw("event_append_failed", "thermostat_id", th.ID(), "type", typ, "err", err)
		return
	}
	s.log.Infow("control_event", "thermostat_id", th.ID(), "type", typ, "operator_id", ev.OperatorID)
}
