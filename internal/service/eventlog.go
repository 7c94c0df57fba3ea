package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"thermostat_control/internal/models"
	"thermostat_control/internal/repository"
)

// Page size bounds for event history queries.
const (
	DefaultLogLimit = 500
	MaxLogLimit     = 5000
)

var (
	// ErrInvalidTimeRange is returned when From is after To.
	ErrInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	// ErrUnknownEventType is returned for a type filter outside models.EventTypes.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrInvalidLimit is returned for a negative limit.
	ErrInvalidLimit = errors.New("limit must be >= 0")
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

// toRepoFilter validates f and converts it to the repository query:
// times in UTC, type uppercased, limit defaulted and capped.
func toRepoFilter(f LogFilter) (repository.EventFilter, error) {
	rf := repository.EventFilter{
		Type:         strings.ToUpper(strings.TrimSpace(f.Type)),
		ThermostatID: strings.TrimSpace(f.ThermostatID),
		OperatorID:   f.OperatorID,
		Limit:        f.Limit,
	}
	if !f.From.IsZero() {
		rf.From = f.From.UTC()
	}
	if !f.To.IsZero() {
		rf.To = f.To.UTC()
	}

	switch {
	case !rf.From.IsZero() && !rf.To.IsZero() && rf.From.After(rf.To):
		return repository.EventFilter{}, ErrInvalidTimeRange
	case rf.Type != "" && !models.IsEventType(rf.Type):
		return repository.EventFilter{}, fmt.Errorf("%w: %q", ErrUnknownEventType, f.Type)
	case rf.Limit < 0:
		return repository.EventFilter{}, ErrInvalidLimit
	}

	switch {
	case rf.Limit == 0:
		rf.Limit = DefaultLogLimit
	case rf.Limit > MaxLogLimit:
		rf.Limit = MaxLogLimit
	}
	return rf, nil
}

// List returns the newest events matching f, oldest first.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ThermostatEvent, error) {
	rf, err := toRepoFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, rf)
}
