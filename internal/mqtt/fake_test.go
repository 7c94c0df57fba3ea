package mqtt

import (
	"context"
	"errors"
	"sync"
	"time"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/models"
	"thermostat_control/internal/repository"
)

type published struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// fakeBroker delivers published messages to matching subscriptions synchronously.
type fakeBroker struct {
	mu        sync.Mutex
	subs      map[string]MessageHandler
	published []published
	subErr    map[string]error
	pubErr    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: make(map[string]MessageHandler), subErr: make(map[string]error)}
}

func (f *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published = append(f.published, published{topic, string(payload), qos, retained})
	return nil
}

func (f *fakeBroker) Subscribe(topic string, _ byte, h MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.subErr[topic]; err != nil {
		return err
	}
	f.subs[topic] = h
	return nil
}

func (f *fakeBroker) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
	return nil
}

// deliver simulates an incoming message and returns the handler's error.
func (f *fakeBroker) deliver(topic, payload string) error {
	f.mu.Lock()
	h, ok := f.subs[topic]
	f.mu.Unlock()
	if !ok {
		return errors.New("no subscription for " + topic)
	}
	return h(topic, []byte(payload))
}

func (f *fakeBroker) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[topic]
	return ok
}

type controlCall struct {
	op     string
	id     string
	value  float64
	source string
	at     time.Time
}

// recordingControl implements service.Control and records every call.
type recordingControl struct {
	mu      sync.Mutex
	calls   []controlCall
	sources []engine.WeightedSource
	err     error
}

func (c *recordingControl) add(call controlCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.err
}

func (c *recordingControl) Enable(_ context.Context, id string) error {
	return c.add(controlCall{op: "enable", id: id})
}

func (c *recordingControl) Disable(_ context.Context, id string) error {
	return c.add(controlCall{op: "disable", id: id})
}

func (c *recordingControl) SetSetpoint(_ context.Context, id string, v float64) error {
	return c.add(controlCall{op: "setpoint", id: id, value: v})
}

func (c *recordingControl) ApplySettings(_ context.Context, id string, _ map[string]any) (engine.PatchReport, error) {
	err := c.add(controlCall{op: "settings", id: id})
	return engine.PatchReport{Sources: c.sources}, err
}

func (c *recordingControl) AcknowledgeAlarm(_ context.Context, id string) error {
	return c.add(controlCall{op: "ack", id: id})
}

func (c *recordingControl) RecordSample(_ context.Context, id, source string, v float64, at time.Time) error {
	return c.add(controlCall{op: "sample", id: id, source: source, value: v, at: at})
}

func (c *recordingControl) take() []controlCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.calls
	c.calls = nil
	return out
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// nopStateRepo and nopEventRepo satisfy the repositories for end-to-end tests.
type nopStateRepo struct{}

func (nopStateRepo) Save(context.Context, models.ThermostatState) error { return nil }
func (nopStateRepo) Load(context.Context, string) (models.ThermostatState, error) {
	return models.ThermostatState{}, nil
}
func (nopStateRepo) List(context.Context) ([]models.ThermostatState, error) { return nil, nil }

type nopEventRepo struct{}

func (nopEventRepo) Append(context.Context, models.ThermostatEvent) error { return nil }
func (nopEventRepo) List(context.Context, repository.EventFilter) ([]models.ThermostatEvent, error) {
	return nil, nil
}
