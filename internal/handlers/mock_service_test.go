package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"thermostat_control/internal/engine"
	"thermostat_control/internal/models"
	"thermostat_control/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type sampleCall struct {
	source string
	value  float64
	at     time.Time
}

type mockControl struct {
	err    error
	report engine.PatchReport

	calls        []string // "op:id"
	lastSetpoint float64
	lastPatch    map[string]any
	lastSample   sampleCall
}

func (m *mockControl) call(op, id string) error {
	m.calls = append(m.calls, op+":"+id)
	return m.err
}

func (m *mockControl) Enable(_ context.Context, id string) error  { return m.call("enable", id) }
func (m *mockControl) Disable(_ context.Context, id string) error { return m.call("disable", id) }
func (m *mockControl) SetSetpoint(_ context.Context, id string, v float64) error {
	m.lastSetpoint = v
	return m.call("setpoint", id)
}
func (m *mockControl) ApplySettings(_ context.Context, id string, patch map[string]any) (engine.PatchReport, error) {
	m.lastPatch = patch
	return m.report, m.call("settings", id)
}
func (m *mockControl) AcknowledgeAlarm(_ context.Context, id string) error {
	return m.call("ack", id)
}
func (m *mockControl) RecordSample(_ context.Context, id, source string, v float64, at time.Time) error {
	m.lastSample = sampleCall{source: source, value: v, at: at}
	return m.call("sample", id)
}

type mockMonitoring struct {
	mu       sync.Mutex
	states   map[string]models.ThermostatState
	settings service.SettingsView
	err      error
}

func (m *mockMonitoring) setState(st models.ThermostatState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.ThermostatID] = st
}

func (m *mockMonitoring) GetState(_ context.Context, id string) (models.ThermostatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.ThermostatState{}, m.err
	}
	st, ok := m.states[id]
	if !ok {
		return models.ThermostatState{}, service.ErrUnknownThermostat
	}
	return st, nil
}

func (m *mockMonitoring) ListStates(_ context.Context) ([]models.ThermostatState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.ThermostatState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThermostatID < out[j].ThermostatID })
	return out, nil
}

func (m *mockMonitoring) GetSettings(_ context.Context, id string) (service.SettingsView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[id]; !ok {
		return service.SettingsView{}, service.ErrUnknownThermostat
	}
	return m.settings, m.err
}

type mockEventLog struct {
	resp []models.ThermostatEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.ThermostatEvent, error) {
	m.last = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
