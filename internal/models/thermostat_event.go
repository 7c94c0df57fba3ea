package models

import "time"

// Event types written to the event log.
const (
	EventEnable            = "ENABLE"
	EventDisable           = "DISABLE"
	EventSetpoint          = "SETPOINT"
	EventSettings          = "SETTINGS"
	EventAlarmAck          = "ALARM_ACK"
	EventHeaterOn          = "HEATER_ON"
	EventHeaterOff         = "HEATER_OFF"
	EventAlarm             = "ALARM"
	EventScheduledShutdown = "SCHEDULED_SHUTDOWN"
)

// EventTypes lists every event type in the order they are documented.
var EventTypes = []string{
	EventEnable, EventDisable, EventSetpoint, EventSettings, EventAlarmAck,
	EventHeaterOn, EventHeaterOff, EventAlarm, EventScheduledShutdown,
}

// IsEventType reports whether t is one of EventTypes.
func IsEventType(t string) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ThermostatEvent is a single log entry.
type ThermostatEvent struct {
	EventID      string    `json:"event_id"`
	ThermostatID string    `json:"thermostat_id"`
	OccurredAt   time.Time `json:"occurred_at"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`           // human-readable
	OperatorID   int       `json:"operator_id,omitempty"` // 0 for engine-originated events
	Metadata     any       `json:"metadata,omitempty"`
}
