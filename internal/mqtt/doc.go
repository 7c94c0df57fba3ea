// Package mqtt connects the thermostat fleet to an MQTT broker.
//
// Every thermostat owns a topic base v1/{locationId}/{deviceId}/{sensorId}/.
// The bridge subscribes to the command topics under that base and to every
// temperature source accepted through a settings patch; the publisher writes
// heater, alarm and enabled transitions back under the same base.
//
// Payloads are plain text: booleans are "true" or "false", numbers are
// decimal text, settings patches are JSON objects.
package mqtt
