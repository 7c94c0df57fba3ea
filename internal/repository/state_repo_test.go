package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"thermostat_control/internal/models"
	"thermostat_control/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

var stateColumns = []string{"thermostat_id", "enabled", "alarmed", "heater_on", "phase", "setpoint", "reference", "reference_ok", "heating_started", "updated_at"}

func newStateRepo(t *testing.T) (*repository.StateSQLite, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewStateSQLite(db), mock
}

func TestStateSQLite_Save_FormatsTimesAsUTC(t *testing.T) {
	repo, mock := newStateRepo(t)

	madrid := time.FixedZone("CET", 3600)
	state := models.ThermostatState{
		ThermostatID:   "hall",
		Enabled:        true,
		HeaterOn:       true,
		Phase:          "HEATING_ON",
		Setpoint:       21,
		Reference:      19.5,
		ReferenceOK:    true,
		HeatingStarted: time.Date(2024, 3, 10, 13, 0, 0, 0, madrid),
		UpdatedAt:      time.Date(2024, 3, 10, 13, 5, 0, 0, madrid),
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO thermostat_state")).
		WithArgs("hall", true, false, true, "HEATING_ON", 21.0, 19.5, true,
			"2024-03-10 12:00:00", "2024-03-10 12:05:00").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_ZeroTimes(t *testing.T) {
	repo, mock := newStateRepo(t)

	recent := sqlmockArgumentFunc(func(v driver.Value) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		tm, err := time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return false
		}
		return time.Since(tm) < time.Minute && time.Since(tm) > -time.Minute
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO thermostat_state")).
		WithArgs("hall", false, true, false, "IDLE", 0.0, 0.0, false, nil, recent).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Save(context.Background(), models.ThermostatState{ThermostatID: "hall", Alarmed: true, Phase: "IDLE"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_Save_Errors(t *testing.T) {
	repo, mock := newStateRepo(t)

	if err := repo.Save(context.Background(), models.ThermostatState{}); err == nil {
		t.Fatalf("expected error for empty id")
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO thermostat_state")).
		WillReturnError(errors.New("db down"))
	if err := repo.Save(context.Background(), models.ThermostatState{ThermostatID: "x"}); err == nil {
		t.Fatalf("Save() expected error, got nil")
	}
}

func TestStateSQLite_Load_NoRowsReturnsZeroValue(t *testing.T) {
	repo, mock := newStateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM thermostat_state WHERE thermostat_id=?")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Load(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, models.ThermostatState{}) {
		t.Fatalf("Load() expected zero state, got: %+v", got)
	}
}

func TestStateSQLite_Load_HappyPath(t *testing.T) {
	repo, mock := newStateRepo(t)

	locNY, _ := time.LoadLocation("America/New_York")
	updated := time.Date(2024, 2, 1, 8, 30, 0, 0, locNY)

	rows := sqlmock.NewRows(stateColumns).
		AddRow("hall", true, true, false, "IDLE", 20.5, 18.0, false, nil, updated)

	mock.ExpectQuery(regexp.QuoteMeta("FROM thermostat_state WHERE thermostat_id=?")).
		WithArgs("hall").
		WillReturnRows(rows)

	got, err := repo.Load(context.Background(), "hall")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if got.ThermostatID != "hall" || !got.Enabled || !got.Alarmed || got.Setpoint != 20.5 {
		t.Fatalf("Load() unexpected fields: %+v", got)
	}
	if !got.HeatingStarted.IsZero() {
		t.Fatalf("expected zero heating start, got %v", got.HeatingStarted)
	}
	if got.UpdatedAt.Location() != time.UTC || !got.UpdatedAt.Equal(updated) {
		t.Fatalf("UpdatedAt not normalized: %v", got.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStateSQLite_List(t *testing.T) {
	repo, mock := newStateRepo(t)

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(stateColumns).
		AddRow("a", true, false, true, "HEATING_ON", 21.0, 19.0, true, now, now).
		AddRow("b", false, false, false, "IDLE", 0.0, 0.0, false, nil, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM thermostat_state ORDER BY thermostat_id ASC")).
		WillReturnRows(rows)

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 2 || got[0].ThermostatID != "a" || got[1].ThermostatID != "b" {
		t.Fatalf("unexpected list: %+v", got)
	}
	if !got[0].HeatingStarted.Equal(now) {
		t.Fatalf("heating start = %v", got[0].HeatingStarted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}
