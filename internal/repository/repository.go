package repository

import (
	"context"
	"database/sql"
	"time"

	"thermostat_control/internal/models"
)

// OperatorRepo stores the accounts allowed to use the API.
type OperatorRepo interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
}

type StateRepo interface {
	Save(ctx context.Context, s models.ThermostatState) error
	Load(ctx context.Context, thermostatID string) (models.ThermostatState, error)
	List(ctx context.Context) ([]models.ThermostatState, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.ThermostatEvent) error
	List(ctx context.Context, f EventFilter) ([]models.ThermostatEvent, error)
}

// EventFilter narrows an event query. Zero fields do not filter.
type EventFilter struct {
	From         time.Time
	To           time.Time
	Type         string
	ThermostatID string
	OperatorID   int
	// Limit keeps only the newest Limit events, still returned oldest first.
	Limit int
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Operators OperatorRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Operators: NewOperatorSQLite(db),
	}
}

// sqliteTime is the layout used for every TIMESTAMP column, so that stored
// values and filter arguments compare as text.
const sqliteTime = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}
