package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"thermostat_control/internal/logger"
	"thermostat_control/internal/models"
	"thermostat_control/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	maxReadSize = 1 << 12

	defaultPollInterval = time.Second
	minPollInterval     = 10 * time.Millisecond
	maxPollInterval     = 10 * time.Second

	envelopeState  = "state"
	envelopeStates = "states"
	envelopeError  = "error"
)

type wsEnvelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// TODO: restrict CheckOrigin once the dashboard origin is configurable.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type streamQuery struct {
	Thermostat string `form:"thermostat"`
	Interval   string `form:"interval"`
	IntervalMs int    `form:"interval_ms"`
}

// pollInterval returns the first valid of interval and interval_ms, else the default.
func (q streamQuery) pollInterval() time.Duration {
	valid := func(d time.Duration) bool { return d >= minPollInterval && d <= maxPollInterval }
	if d, err := time.ParseDuration(q.Interval); err == nil && valid(d) {
		return d
	}
	if d := time.Duration(q.IntervalMs) * time.Millisecond; valid(d) {
		return d
	}
	return defaultPollInterval
}

// @Summary      Stream thermostat state
// @Description  Upgrades to a WebSocket. Sends the current state, then a new envelope whenever the state changes. Without ?thermostat every thermostat is sent.
// @Tags         thermostats
// @Param        thermostat   query  string  false  "Thermostat id"
// @Param        interval     query  string  false  "Poll interval, Go duration up to 10s"  example(2s)
// @Param        interval_ms  query  int     false  "Poll interval in milliseconds"
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	var q streamQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}
	if q.Thermostat != "" {
		if _, err := h.services.Monitoring.GetState(c.Request.Context(), q.Thermostat); errors.Is(err, service.ErrUnknownThermostat) {
			c.JSON(http.StatusNotFound, gin.H{"error": errUnknownThermostat})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	s := &stateStream{
		conn:  conn,
		fetch: h.stateFetcher(q.Thermostat),
		log:   h.log.Named("ws", "thermostat_id", q.Thermostat),
	}
	s.run(c.Request.Context(), q.pollInterval())
}

// snapshot is one poll result: the envelope to send and the states it carries.
type snapshot struct {
	typ    string
	data   any
	states []models.ThermostatState
}

// stateFetcher polls one thermostat or, for an empty id, all of them.
func (h *Handler) stateFetcher(id string) func(context.Context) (snapshot, error) {
	if id == "" {
		return func(ctx context.Context) (snapshot, error) {
			states, err := h.services.Monitoring.ListStates(ctx)
			return snapshot{typ: envelopeStates, data: states, states: states}, err
		}
	}
	return func(ctx context.Context) (snapshot, error) {
		st, err := h.services.Monitoring.GetState(ctx, id)
		return snapshot{typ: envelopeState, data: st, states: []models.ThermostatState{st}}, err
	}
}

// changeKey identifies the content of a snapshot, ignoring the poll time.
func (s snapshot) changeKey() ([]byte, error) {
	states := make([]models.ThermostatState, len(s.states))
	for i, st := range s.states {
		st.UpdatedAt = time.Time{}
		states[i] = st
	}
	return json.Marshal(states)
}

// stateStream pushes state to one client. The first poll is always sent; later
// polls are sent only when some state differs from the previous poll.
type stateStream struct {
	conn    *websocket.Conn
	fetch   func(context.Context) (snapshot, error)
	log     *logger.Logger
	lastKey []byte
}

func (s *stateStream) run(ctx context.Context, interval time.Duration) {
	defer func() { _ = s.conn.Close() }()

	s.conn.SetReadLimit(maxReadSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	closed := make(chan struct{})
	go s.drain(closed)

	poll := time.NewTicker(interval)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.push(ctx); err != nil {
		s.log.Infow("ws_stream_stopped", "err", err)
		return
	}
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case <-poll.C:
			if err := s.push(ctx); err != nil {
				s.log.Infow("ws_stream_stopped", "err", err)
				return
			}
		}
	}
}

// push sends the current state if it changed. A fetch failure is reported to
// the client as an error envelope and ends the stream.
func (s *stateStream) push(ctx context.Context) error {
	snap, err := s.fetch(ctx)
	if err != nil {
		s.log.Errorw("ws_fetch_state_failed", "err", err)
		_ = s.write(wsEnvelope{Type: envelopeError, Error: "failed to get state"})
		return err
	}
	key, err := snap.changeKey()
	if err != nil {
		return err
	}
	if s.lastKey != nil && bytes.Equal(key, s.lastKey) {
		return nil
	}
	payload, err := json.Marshal(snap.data)
	if err != nil {
		return err
	}
	s.lastKey = key
	return s.write(wsEnvelope{Type: snap.typ, Data: payload})
}

func (s *stateStream) write(env wsEnvelope) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(env)
}

// drain reads until the client goes away so control frames are processed.
func (s *stateStream) drain(closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			s.log.Debugw("ws_read_closed", "err", err)
			return
		}
	}
}
