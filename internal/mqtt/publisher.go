package mqtt

import (
	"context"
	"fmt"

	"thermostat_control/internal/service"
)

// Publisher delivers engine commands to the devices as retained messages.
type Publisher struct {
	broker Broker
	routes map[string]Route
	qos    byte
}

var _ service.CommandSink = (*Publisher)(nil)

func NewPublisher(broker Broker, routes []Route, qos byte) *Publisher {
	p := &Publisher{broker: broker, routes: make(map[string]Route, len(routes)), qos: qos}
	for _, r := range routes {
		p.routes[r.ThermostatID] = r
	}
	return p
}

// SetHeating writes the heater command to aux/setHeating.
func (p *Publisher) SetHeating(ctx context.Context, id string, on bool) error {
	return p.publish(ctx, id, Route.SetHeating, on)
}

// SetAlarm writes the alarm flag to aux/alarm.
func (p *Publisher) SetAlarm(ctx context.Context, id string, on bool) error {
	return p.publish(ctx, id, Route.Alarm, on)
}

// ReportEnabled writes the enabled flag to state.
func (p *Publisher) ReportEnabled(ctx context.Context, id string, on bool) error {
	return p.publish(ctx, id, Route.State, on)
}

func (p *Publisher) publish(ctx context.Context, id string, topicOf func(Route) string, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, ok := p.routes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoute, id)
	}
	return p.broker.Publish(topicOf(r), EncodeBool(on), p.qos, true)
}
