package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"thermostat_control/internal/logger"
	"thermostat_control/internal/service"
)

// Bridge routes broker messages to the control service.
type Bridge struct {
	broker  Broker
	control service.Control
	clock   service.Clock
	routes  []Route
	qos     byte
	log     *logger.Logger

	ctx context.Context

	subMu sync.Mutex // serializes source subscription and its rollback

	mu      sync.Mutex
	sources map[string][]string // source topic -> thermostat ids fed by it
}

func NewBridge(broker Broker, control service.Control, routes []Route, qos byte, clock service.Clock, log *logger.Logger) *Bridge {
	if clock == nil {
		clock = service.SystemClock{}
	}
	return &Bridge{
		broker:  broker,
		control: control,
		clock:   clock,
		routes:  routes,
		qos:     qos,
		log:     log.Named("bridge"),
		ctx:     context.Background(),
		sources: make(map[string][]string),
	}
}

// Start subscribes to the command topics of every thermostat. ctx is
// passed to the control service for every message handled afterwards.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx
	var errs []error
	for _, r := range b.routes {
		subs := map[string]MessageHandler{
			r.SetState(): b.onSetState(r.ThermostatID),
			r.Setpoint(): b.onSetpoint(r.ThermostatID),
			r.AckAlarm(): b.onAckAlarm(r.ThermostatID),
			r.Settings(): b.onSettings(r.ThermostatID),
		}
		for topic, h := range subs {
			if err := b.broker.Subscribe(topic, b.qos, h); err != nil {
				errs = append(errs, err)
			}
		}
		b.log.Infow("bridge_thermostat_subscribed", "thermostat_id", r.ThermostatID, "base", r.Base())
	}
	return errors.Join(errs...)
}

// Sources returns the thermostats fed by each watched source topic.
func (b *Bridge) Sources() map[string][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string][]string, len(b.sources))
	for topic, ids := range b.sources {
		out[topic] = append([]string(nil), ids...)
	}
	return out
}

func (b *Bridge) onSetState(id string) MessageHandler {
	return func(_ string, payload []byte) error {
		on, err := DecodeBool(payload)
		if err != nil {
			return err
		}
		if on {
			return b.control.Enable(b.ctx, id)
		}
		return b.control.Disable(b.ctx, id)
	}
}

func (b *Bridge) onSetpoint(id string) MessageHandler {
	return func(_ string, payload []byte) error {
		v, err := DecodeFloat(payload)
		if err != nil {
			return err
		}
		return b.control.SetSetpoint(b.ctx, id, v)
	}
}

func (b *Bridge) onAckAlarm(id string) MessageHandler {
	return func(_ string, payload []byte) error {
		ack, err := DecodeBool(payload)
		if err != nil || !ack {
			return err
		}
		return b.control.AcknowledgeAlarm(b.ctx, id)
	}
}

func (b *Bridge) onSettings(id string) MessageHandler {
	return func(_ string, payload []byte) error {
		patch, err := DecodeObject(payload)
		if err != nil {
			return err
		}
		report, err := b.control.ApplySettings(b.ctx, id, patch)
		if err != nil {
			return err
		}
		var errs []error
		for _, src := range report.Sources {
			if err := b.watchSource(id, src.ID); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// watchSource makes sure samples published on topic reach thermostat id.
// One broker subscription serves every thermostat sharing the topic.
func (b *Bridge) watchSource(id, topic string) error {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.mu.Lock()
	ids := b.sources[topic]
	for _, have := range ids {
		if have == id {
			b.mu.Unlock()
			return nil
		}
	}
	b.sources[topic] = append(ids, id)
	first := len(ids) == 0
	b.mu.Unlock()

	if !first {
		return nil
	}
	if err := b.broker.Subscribe(topic, b.qos, b.onSample(topic)); err != nil {
		b.mu.Lock()
		delete(b.sources, topic)
		b.mu.Unlock()
		return fmt.Errorf("watch source %s: %w", topic, err)
	}
	b.log.Infow("source_subscribed", "topic", topic, "thermostat_id", id)
	return nil
}

func (b *Bridge) onSample(topic string) MessageHandler {
	return func(_ string, payload []byte) error {
		v, err := DecodeFloat(payload)
		if err != nil {
			return err
		}
		at := b.clock.Now()

		b.mu.Lock()
		ids := append([]string(nil), b.sources[topic]...)
		b.mu.Unlock()

		var errs []error
		for _, id := range ids {
			if err := b.control.RecordSample(b.ctx, id, topic, v, at); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
