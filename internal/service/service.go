package service

import (
	"context"
	"time"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/logger"
	"thermostat_control/internal/models"
	"thermostat_control/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Control exposes the inputs of a thermostat. Every operation only changes
// engine state; the regulator turns it into commands on its next tick.
type Control interface {
	Enable(ctx context.Context, id string) error
	Disable(ctx context.Context, id string) error
	SetSetpoint(ctx context.Context, id string, value float64) error
	ApplySettings(ctx context.Context, id string, patch map[string]any) (engine.PatchReport, error)
	AcknowledgeAlarm(ctx context.Context, id string) error
	RecordSample(ctx context.Context, id, source string, value float64, at time.Time) error
}

// Monitoring exposes read-only live state.
type Monitoring interface {
	GetState(ctx context.Context, id string) (models.ThermostatState, error)
	ListStates(ctx context.Context) ([]models.ThermostatState, error)
	GetSettings(ctx context.Context, id string) (SettingsView, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ThermostatEvent, error)
}

// Regulator runs the periodic evaluation loop.
// Stop via context cancellation in main() for graceful shutdown.
type Regulator interface {
	Run(ctx context.Context, tick time.Duration)
	EvaluateAll(ctx context.Context) []Decision
	Sync(ctx context.Context) error
}

type Service struct {
	Control
	Monitoring
	EventLog
	Regulator
	Authorization
}

// Deps carries what the services need besides the repositories.
// Zero Clock and Sink select SystemClock and a LogSink.
type Deps struct {
	Fleet  *Fleet
	Sink   CommandSink
	Clock  Clock
	Auth   AuthConfig
	Logger *logger.Logger
}

func NewService(repos *repository.Repository, d Deps) *Service {
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	if d.Sink == nil {
		d.Sink = NewLogSink(d.Logger)
	}
	return &Service{
		Control:       NewControlService(d.Fleet, repos.StateRepo, repos.EventRepo, d.Clock, d.Logger),
		Monitoring:    NewMonitoringService(d.Fleet, d.Clock),
		EventLog:      NewEventLogService(repos.EventRepo),
		Regulator:     NewRegulatorService(d.Fleet, d.Sink, repos.StateRepo, repos.EventRepo, d.Clock, d.Logger),
		Authorization: NewAuthService(repos.Operators, d.Auth),
	}
}

// LogFilter supports history filtering by time range, type, thermostat and operator.
type LogFilter struct {
	From         time.Time // inclusive; zero means no lower bound
	To           time.Time // inclusive; zero means no upper bound
	Type         string    // "", "ENABLE", "HEATER_ON", "ALARM", ...
	ThermostatID string
	OperatorID   int
	Limit        int // 0 selects DefaultLogLimit
}

// Clock is the time source of the services.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
