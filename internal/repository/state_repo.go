package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"thermostat_control/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	upsertStateSQL = `
		INSERT INTO thermostat_state (thermostat_id, enabled, alarmed, heater_on, phase, setpoint, reference, reference_ok, heating_started, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thermostat_id) DO UPDATE SET
			enabled=excluded.enabled,
			alarmed=excluded.alarmed,
			heater_on=excluded.heater_on,
			phase=excluded.phase,
			setpoint=excluded.setpoint,
			reference=excluded.reference,
			reference_ok=excluded.reference_ok,
			heating_started=excluded.heating_started,
			updated_at=excluded.updated_at
	`

	selectStateColumns = `SELECT thermostat_id, enabled, alarmed, heater_on, phase, setpoint, reference, reference_ok, heating_started, updated_at FROM thermostat_state`

	selectStateSQL     = selectStateColumns + ` WHERE thermostat_id=?`
	selectAllStatesSQL = selectStateColumns + ` ORDER BY thermostat_id ASC`
)

// Save upserts the snapshot row of s.ThermostatID.
func (r *StateSQLite) Save(ctx context.Context, s models.ThermostatState) error {
	if s.ThermostatID == "" {
		return errors.New("save state: empty thermostat id")
	}

	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	var started any
	if !s.HeatingStarted.IsZero() {
		started = formatTime(s.HeatingStarted)
	}

	_, err := r.db.ExecContext(ctx, upsertStateSQL,
		s.ThermostatID,
		s.Enabled,
		s.Alarmed,
		s.HeaterOn,
		s.Phase,
		s.Setpoint,
		s.Reference,
		s.ReferenceOK,
		started,
		formatTime(ts),
	)
	if err != nil {
		return fmt.Errorf("save state %q: %w", s.ThermostatID, err)
	}
	return nil
}

// Load fetches the row of one thermostat. A thermostat that was never saved
// yields a zero state and a nil error.
func (r *StateSQLite) Load(ctx context.Context, thermostatID string) (models.ThermostatState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, thermostatID)
	s, err := scanState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ThermostatState{}, nil
		}
		return models.ThermostatState{}, fmt.Errorf("load state %q: %w", thermostatID, err)
	}
	return s, nil
}

// List returns every stored snapshot ordered by thermostat id.
func (r *StateSQLite) List(ctx context.Context) ([]models.ThermostatState, error) {
	rows, err := r.db.QueryContext(ctx, selectAllStatesSQL)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	defer rows.Close()

	var out []models.ThermostatState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("list states: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(sc scanner) (models.ThermostatState, error) {
	var (
		s       models.ThermostatState
		started sql.NullTime
	)
	if err := sc.Scan(
		&s.ThermostatID,
		&s.Enabled,
		&s.Alarmed,
		&s.HeaterOn,
		&s.Phase,
		&s.Setpoint,
		&s.Reference,
		&s.ReferenceOK,
		&started,
		&s.UpdatedAt,
	); err != nil {
		return models.ThermostatState{}, err
	}
	if started.Valid {
		s.HeatingStarted = started.Time.UTC()
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
