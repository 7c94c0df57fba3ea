package mqtt

import "strings"

// Topic suffixes under a thermostat's base.
const (
	suffixSetState   = "setState"
	suffixState      = "state"
	suffixSetpoint   = "aux/setpoint"
	suffixAckAlarm   = "aux/ackAlarm"
	suffixSettings   = "aux/settings"
	suffixSetHeating = "aux/setHeating"
	suffixAlarm      = "aux/alarm"
)

// Route is the topic base of one thermostat: v1/{locationId}/{deviceId}/{sensorId}/.
type Route struct {
	ThermostatID string
	LocationID   string
	DeviceID     string
	SensorID     string
}

// Base returns the topic prefix, always ending in a slash.
func (r Route) Base() string {
	return "v1/" + strings.Join([]string{r.LocationID, r.DeviceID, r.SensorID}, "/") + "/"
}

func (r Route) topic(suffix string) string { return r.Base() + suffix }

func (r Route) SetState() string   { return r.topic(suffixSetState) }
func (r Route) State() string      { return r.topic(suffixState) }
func (r Route) Setpoint() string   { return r.topic(suffixSetpoint) }
func (r Route) AckAlarm() string   { return r.topic(suffixAckAlarm) }
func (r Route) Settings() string   { return r.topic(suffixSettings) }
func (r Route) SetHeating() string { return r.topic(suffixSetHeating) }
func (r Route) Alarm() string      { return r.topic(suffixAlarm) }
